package repository

import (
	"context"
	"fmt"
	"strings"

	"coinsight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type SignalRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSignalRepository(pool PgxPool, tracer trace.Tracer) *SignalRepository {
	return &SignalRepository{pool: pool, tracer: tracer}
}

// InsertSignal stores the signal and fills in its generated ID.
func (r *SignalRepository) InsertSignal(ctx context.Context, s *domain.Signal) error {
	_, span := r.tracer.Start(ctx, "signal-repo.insert-signal")
	defer span.End()

	if !s.Risk.IsValid() {
		return fmt.Errorf("invalid risk level: %d", s.Risk)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO signals (symbol, interval, indicator, ts, risk, direction, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		s.Symbol, s.Interval, s.Indicator, s.Timestamp, int(s.Risk), string(s.Direction), s.Details,
	)
	return row.Scan(&s.ID)
}

// ListSignals returns signals matching the filter, newest first.
func (r *SignalRepository) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]*domain.Signal, error) {
	_, span := r.tracer.Start(ctx, "signal-repo.list-signals")
	defer span.End()

	var (
		conds []string
		args  []any
	)
	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		conds = append(conds, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if filter.Indicator != "" {
		args = append(args, filter.Indicator)
		conds = append(conds, fmt.Sprintf("indicator = $%d", len(args)))
	}
	if filter.Risk != nil {
		args = append(args, int(*filter.Risk))
		conds = append(conds, fmt.Sprintf("risk = $%d", len(args)))
	}

	query := `SELECT id, symbol, interval, indicator, ts, risk, direction, details FROM signals`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*domain.Signal
	for rows.Next() {
		s := &domain.Signal{}
		var risk int
		var direction string
		if err := rows.Scan(&s.ID, &s.Symbol, &s.Interval, &s.Indicator, &s.Timestamp, &risk, &direction, &s.Details); err != nil {
			return nil, err
		}
		s.Risk = domain.RiskLevel(risk)
		s.Direction = domain.SignalDirection(direction)
		s.Timestamp = s.Timestamp.UTC()
		signals = append(signals, s)
	}
	return signals, rows.Err()
}
