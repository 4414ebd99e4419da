package sentiment

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"coinsight/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

// SourceStats is the per-source aggregate of scored items for one symbol
// over the aggregation window.
type SourceStats struct {
	Score      float64
	Confidence float64
	Count      int
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) UpsertItems(ctx context.Context, items []domain.SentimentItem) ([]domain.SentimentItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-items")
	defer span.End()

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
INSERT INTO sentiment_items (
    source, source_name, external_id, title, body, url, author,
    published_at, fetched_at,
    score, confidence, scored_by, scored_at
) VALUES (
    $1, $2, $3, $4, $5, $6, $7,
    $8, COALESCE($9, NOW()),
    $10, $11, $12, $13
)
ON CONFLICT (source, external_id) DO UPDATE SET
    source_name = EXCLUDED.source_name,
    title = EXCLUDED.title,
    body = EXCLUDED.body,
    url = EXCLUDED.url,
    author = EXCLUDED.author,
    published_at = EXCLUDED.published_at,
    fetched_at = EXCLUDED.fetched_at,
    score = COALESCE(EXCLUDED.score, sentiment_items.score),
    confidence = COALESCE(EXCLUDED.confidence, sentiment_items.confidence),
    scored_by = COALESCE(EXCLUDED.scored_by, sentiment_items.scored_by),
    scored_at = COALESCE(EXCLUDED.scored_at, sentiment_items.scored_at),
    updated_at = NOW()
RETURNING id, source, source_name, external_id, title, body, url, author,
          published_at, fetched_at,
          score, confidence, scored_by, '{}'::text[]`,
			item.Source,
			item.SourceName,
			item.ExternalID,
			item.Title,
			item.Body,
			item.URL,
			item.Author,
			item.PublishedAt.UTC(),
			nullIfZeroTime(item.FetchedAt),
			nullScore(item.ScoredBy, item.Score),
			nullScore(item.ScoredBy, item.Confidence),
			nullString(item.ScoredBy),
			scoredAtFor(item),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]domain.SentimentItem, 0, len(items))
	for range items {
		item, err := scanItemRow(br.QueryRow())
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Repository) UpsertItemSymbols(ctx context.Context, itemID int64, symbols []string) error {
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-item-symbols")
	defer span.End()

	if itemID <= 0 || len(symbols) == 0 {
		return nil
	}
	unique := normalizeSymbolList(symbols)
	if len(unique) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, symbol := range unique {
		batch.Queue(`
INSERT INTO sentiment_item_symbols (item_id, symbol)
VALUES ($1, $2)
ON CONFLICT (item_id, symbol) DO NOTHING`, itemID, symbol)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range unique {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) ListUnscoredItems(ctx context.Context, limit int) ([]domain.SentimentItem, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.list-unscored-items")
	defer span.End()

	if limit <= 0 {
		limit = 200
	}

	rows, err := r.pool.Query(ctx, `
SELECT i.id, i.source, i.source_name, i.external_id, i.title, i.body, i.url, i.author,
       i.published_at, i.fetched_at,
       i.score, i.confidence, i.scored_by,
       COALESCE(array_agg(s.symbol) FILTER (WHERE s.symbol IS NOT NULL), '{}'::text[])
FROM sentiment_items i
LEFT JOIN sentiment_item_symbols s ON s.item_id = i.id
WHERE i.scored_at IS NULL
GROUP BY i.id
ORDER BY i.published_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SentimentItem, 0, limit)
	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateItemScore(ctx context.Context, itemID int64, score, confidence float64, scoredBy string, scoredAt time.Time) error {
	_, span := r.tracer.Start(ctx, "sentiment-repo.update-item-score")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE sentiment_items
SET score = $2,
    confidence = $3,
    scored_by = $4,
    scored_at = $5,
    updated_at = NOW()
WHERE id = $1`, itemID, score, confidence, scoredBy, scoredAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) SourceAverages(ctx context.Context, symbol string, from, to time.Time) (map[string]SourceStats, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.source-averages")
	defer span.End()

	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return map[string]SourceStats{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT i.source,
       AVG(i.score) AS avg_score,
       AVG(i.confidence) AS avg_conf,
       COUNT(*)::INT AS n
FROM sentiment_items i
JOIN sentiment_item_symbols s ON s.item_id = i.id
WHERE s.symbol = $1
  AND i.scored_at IS NOT NULL
  AND i.published_at >= $2
  AND i.published_at <= $3
GROUP BY i.source`, symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]SourceStats)
	for rows.Next() {
		var source string
		var stats SourceStats
		if err := rows.Scan(&source, &stats.Score, &stats.Confidence, &stats.Count); err != nil {
			return nil, err
		}
		out[source] = stats
	}
	return out, rows.Err()
}

func (r *Repository) UpsertAttentionSnapshot(ctx context.Context, snapshot domain.AttentionSnapshot) (*domain.AttentionSnapshot, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-attention-snapshot")
	defer span.End()

	var out domain.AttentionSnapshot
	err := r.pool.QueryRow(ctx, `
INSERT INTO attention_snapshots (
    symbol, day, edit_count, editor_count, edit_z, fetched_at
) VALUES (
    $1, $2, $3, $4, $5, $6
)
ON CONFLICT (symbol, day) DO UPDATE SET
    edit_count = EXCLUDED.edit_count,
    editor_count = EXCLUDED.editor_count,
    edit_z = EXCLUDED.edit_z,
    fetched_at = EXCLUDED.fetched_at
RETURNING id, symbol, day, edit_count, editor_count, edit_z, fetched_at`,
		normalizeSymbol(snapshot.Symbol), snapshot.Day.UTC(), snapshot.EditCount, snapshot.EditorCount, snapshot.EditZ, snapshot.FetchedAt.UTC(),
	).Scan(
		&out.ID,
		&out.Symbol,
		&out.Day,
		&out.EditCount,
		&out.EditorCount,
		&out.EditZ,
		&out.FetchedAt,
	)
	if err != nil {
		return nil, err
	}
	out.Day = out.Day.UTC()
	out.FetchedAt = out.FetchedAt.UTC()
	return &out, nil
}

// LatestAttentionBefore returns the newest attention snapshot for the symbol
// dated at or before ts.
func (r *Repository) LatestAttentionBefore(ctx context.Context, symbol string, ts time.Time) (*domain.AttentionSnapshot, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.latest-attention-before")
	defer span.End()

	var out domain.AttentionSnapshot
	err := r.pool.QueryRow(ctx, `
SELECT id, symbol, day, edit_count, editor_count, edit_z, fetched_at
FROM attention_snapshots
WHERE symbol = $1 AND day <= $2
ORDER BY day DESC
LIMIT 1`, normalizeSymbol(symbol), ts.UTC()).Scan(
		&out.ID,
		&out.Symbol,
		&out.Day,
		&out.EditCount,
		&out.EditorCount,
		&out.EditZ,
		&out.FetchedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out.Day = out.Day.UTC()
	out.FetchedAt = out.FetchedAt.UTC()
	return &out, nil
}

func (r *Repository) UpsertCompositeSnapshot(ctx context.Context, snapshot domain.CompositeSnapshot) (*domain.CompositeSnapshot, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.upsert-composite-snapshot")
	defer span.End()

	var out domain.CompositeSnapshot
	var risk int16
	var direction string
	err := r.pool.QueryRow(ctx, `
INSERT INTO composite_snapshots (
    symbol, ts,
    score, confidence, direction, risk,
    fear_greed_score, news_score, social_score, attention_score,
    item_count, details_json
) VALUES (
    $1, $2,
    $3, $4, $5, $6,
    $7, $8, $9, $10,
    $11, $12
)
ON CONFLICT (symbol, ts) DO UPDATE SET
    score = EXCLUDED.score,
    confidence = EXCLUDED.confidence,
    direction = EXCLUDED.direction,
    risk = EXCLUDED.risk,
    fear_greed_score = EXCLUDED.fear_greed_score,
    news_score = EXCLUDED.news_score,
    social_score = EXCLUDED.social_score,
    attention_score = EXCLUDED.attention_score,
    item_count = EXCLUDED.item_count,
    details_json = EXCLUDED.details_json,
    updated_at = NOW()
RETURNING id, symbol, ts,
          score, confidence, direction, risk,
          fear_greed_score, news_score, social_score, attention_score,
          item_count, details_json`,
		normalizeSymbol(snapshot.Symbol), snapshot.Timestamp.UTC(),
		snapshot.Score, snapshot.Confidence, string(snapshot.Direction), int16(snapshot.Risk),
		nullFloat(snapshot.FearGreed),
		nullFloat(snapshot.NewsScore),
		nullFloat(snapshot.SocialScore),
		nullFloat(snapshot.AttentionScore),
		snapshot.ItemCount,
		ensureJSON(snapshot.DetailsJSON),
	).Scan(
		&out.ID,
		&out.Symbol,
		&out.Timestamp,
		&out.Score,
		&out.Confidence,
		&direction,
		&risk,
		&out.FearGreed,
		&out.NewsScore,
		&out.SocialScore,
		&out.AttentionScore,
		&out.ItemCount,
		&out.DetailsJSON,
	)
	if err != nil {
		return nil, err
	}
	out.Direction = domain.SignalDirection(direction)
	out.Risk = domain.RiskLevel(risk)
	out.Timestamp = out.Timestamp.UTC()
	return &out, nil
}

// LatestComposite returns the newest composite snapshot for the symbol.
func (r *Repository) LatestComposite(ctx context.Context, symbol string) (*domain.CompositeSnapshot, error) {
	return r.latestComposite(ctx, "sentiment-repo.latest-composite", symbol, `
SELECT id, symbol, ts,
       score, confidence, direction, risk,
       fear_greed_score, news_score, social_score, attention_score,
       item_count, details_json
FROM composite_snapshots
WHERE symbol = $1
ORDER BY ts DESC
LIMIT 1`, normalizeSymbol(symbol))
}

// LatestCompositeBefore returns the newest composite snapshot at or before
// ts, the as-of lookup used when joining sentiment onto historical bars.
func (r *Repository) LatestCompositeBefore(ctx context.Context, symbol string, ts time.Time) (*domain.CompositeSnapshot, error) {
	return r.latestComposite(ctx, "sentiment-repo.latest-composite-before", symbol, `
SELECT id, symbol, ts,
       score, confidence, direction, risk,
       fear_greed_score, news_score, social_score, attention_score,
       item_count, details_json
FROM composite_snapshots
WHERE symbol = $1 AND ts <= $2
ORDER BY ts DESC
LIMIT 1`, normalizeSymbol(symbol), ts.UTC())
}

func (r *Repository) latestComposite(ctx context.Context, spanName, symbol, query string, args ...any) (*domain.CompositeSnapshot, error) {
	_, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	if symbol == "" {
		return nil, nil
	}

	var out domain.CompositeSnapshot
	var risk int16
	var direction string
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&out.ID,
		&out.Symbol,
		&out.Timestamp,
		&out.Score,
		&out.Confidence,
		&direction,
		&risk,
		&out.FearGreed,
		&out.NewsScore,
		&out.SocialScore,
		&out.AttentionScore,
		&out.ItemCount,
		&out.DetailsJSON,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out.Direction = domain.SignalDirection(direction)
	out.Risk = domain.RiskLevel(risk)
	out.Timestamp = out.Timestamp.UTC()
	return &out, nil
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "sentiment-repo.delete-older-than")
	defer span.End()

	total := int64(0)
	queries := []string{
		`DELETE FROM sentiment_items WHERE published_at < $1`,
		`DELETE FROM attention_snapshots WHERE day < $1`,
		`DELETE FROM composite_snapshots WHERE ts < $1`,
	}
	for _, q := range queries {
		tag, err := r.pool.Exec(ctx, q, cutoff.UTC())
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func scanItemRow(s interface{ Scan(dest ...any) error }) (domain.SentimentItem, error) {
	var out domain.SentimentItem
	var score pgtype.Float8
	var conf pgtype.Float8
	var scoredBy pgtype.Text
	var symbols []string

	if err := s.Scan(
		&out.ID,
		&out.Source,
		&out.SourceName,
		&out.ExternalID,
		&out.Title,
		&out.Body,
		&out.URL,
		&out.Author,
		&out.PublishedAt,
		&out.FetchedAt,
		&score,
		&conf,
		&scoredBy,
		&symbols,
	); err != nil {
		return domain.SentimentItem{}, err
	}

	out.PublishedAt = out.PublishedAt.UTC()
	out.FetchedAt = out.FetchedAt.UTC()
	if score.Valid {
		out.Score = score.Float64
	}
	if conf.Valid {
		out.Confidence = conf.Float64
	}
	if scoredBy.Valid {
		out.ScoredBy = scoredBy.String
	}
	out.Symbols = normalizeSymbolList(symbols)
	return out, nil
}

func normalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ""
	}
	if _, ok := domain.CoinGeckoID[symbol]; !ok {
		return ""
	}
	return symbol
}

func normalizeSymbolList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		norm := normalizeSymbol(symbol)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}

func ensureJSON(raw string) string {
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	encoded, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

// Pre-scored items (the fear/greed index) carry their score on insert; raw
// content arrives unscored and gets NULLs until the scorer runs.
func nullScore(scoredBy string, v float64) any {
	if strings.TrimSpace(scoredBy) == "" {
		return nil
	}
	return v
}

func scoredAtFor(item domain.SentimentItem) any {
	if strings.TrimSpace(item.ScoredBy) == "" {
		return nil
	}
	if item.FetchedAt.IsZero() {
		return item.PublishedAt.UTC()
	}
	return item.FetchedAt.UTC()
}

func nullIfZeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UTC()
}
