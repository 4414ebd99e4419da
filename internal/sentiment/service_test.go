package sentiment

import (
	"context"
	"testing"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

func TestServiceRunCycleWritesDirectionalSignalsOnly(t *testing.T) {
	now := time.Date(2026, 8, 13, 19, 30, 0, 0, time.UTC)
	store := &sentimentStoreStub{
		averagesBySymbol: map[string]map[string]SourceStats{
			"BTC": {
				domain.SourceNews:      {Score: 0.9, Confidence: 0.8, Count: 3},
				domain.SourceReddit:    {Score: 0.6, Confidence: 0.7, Count: 2},
				domain.SourceFearGreed: {Score: 0.4, Confidence: 0.6, Count: 1},
			},
		},
	}
	signals := &signalStoreStub{}
	svc := NewService(
		trace.NewNoopTracerProvider().Tracer("test"),
		store,
		NewScorer(nil, 8),
		signals,
		nil,
		nil,
		nil,
		nil,
		Config{LongThreshold: 0.35, ShortThreshold: -0.35},
	)

	res, err := svc.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CompositesWritten != len(domain.SupportedSymbols) {
		t.Fatalf("expected one composite per symbol, got %d", res.CompositesWritten)
	}
	if res.SignalsWritten != 1 {
		t.Fatalf("expected one directional signal for BTC, got %d", res.SignalsWritten)
	}
	if len(signals.inserted) != 1 {
		t.Fatalf("expected one inserted signal row, got %d", len(signals.inserted))
	}
	if signals.inserted[0].Indicator != domain.IndicatorSentiment {
		t.Fatalf("unexpected indicator %s", signals.inserted[0].Indicator)
	}
	if ts := signals.inserted[0].Timestamp; ts != now.Truncate(time.Hour) {
		t.Fatalf("signal should land on the hour bucket, got %s", ts)
	}
}

func TestServiceRunCycleDoesNotFailOnProviderErrors(t *testing.T) {
	now := time.Date(2026, 8, 13, 19, 30, 0, 0, time.UTC)
	store := &sentimentStoreStub{}
	svc := NewService(
		trace.NewNoopTracerProvider().Tracer("test"),
		store,
		NewScorer(nil, 8),
		nil,
		nil,
		nil,
		nil,
		attentionReaderStub{err: context.DeadlineExceeded},
		Config{},
	)

	res, err := svc.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected non-fatal warning errors")
	}
}

func TestServiceRunCycleStoresAttentionSnapshots(t *testing.T) {
	now := time.Date(2026, 8, 13, 19, 30, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -14).Truncate(24 * time.Hour)
	stats := make([]provider.WikiEditStats, 0, 15)
	for i := 0; i < 15; i++ {
		stats = append(stats, provider.WikiEditStats{Day: day.AddDate(0, 0, i), EditCount: 4 + i%3, EditorCount: 2})
	}
	store := &sentimentStoreStub{}
	svc := NewService(
		trace.NewNoopTracerProvider().Tracer("test"),
		store,
		NewScorer(nil, 8),
		nil,
		nil,
		nil,
		nil,
		attentionReaderStub{stats: stats},
		Config{},
	)

	res, err := svc.RunCycle(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := len(stats) * len(domain.SupportedSymbols)
	if res.AttentionSnapshots != want {
		t.Fatalf("expected %d attention snapshots, got %d", want, res.AttentionSnapshots)
	}
}

type sentimentStoreStub struct {
	itemSeq          int64
	composites       []domain.CompositeSnapshot
	attention        []domain.AttentionSnapshot
	averagesBySymbol map[string]map[string]SourceStats
}

func (s *sentimentStoreStub) UpsertItems(ctx context.Context, items []domain.SentimentItem) ([]domain.SentimentItem, error) {
	out := make([]domain.SentimentItem, len(items))
	for i := range items {
		s.itemSeq++
		out[i] = items[i]
		out[i].ID = s.itemSeq
	}
	return out, nil
}

func (s *sentimentStoreStub) UpsertItemSymbols(ctx context.Context, itemID int64, symbols []string) error {
	return nil
}

func (s *sentimentStoreStub) ListUnscoredItems(ctx context.Context, limit int) ([]domain.SentimentItem, error) {
	return nil, nil
}

func (s *sentimentStoreStub) UpdateItemScore(ctx context.Context, itemID int64, score, confidence float64, scoredBy string, scoredAt time.Time) error {
	return nil
}

func (s *sentimentStoreStub) SourceAverages(ctx context.Context, symbol string, from, to time.Time) (map[string]SourceStats, error) {
	if s.averagesBySymbol == nil {
		return map[string]SourceStats{}, nil
	}
	if stats, ok := s.averagesBySymbol[symbol]; ok {
		return stats, nil
	}
	return map[string]SourceStats{}, nil
}

func (s *sentimentStoreStub) UpsertAttentionSnapshot(ctx context.Context, snapshot domain.AttentionSnapshot) (*domain.AttentionSnapshot, error) {
	copy := snapshot
	s.attention = append(s.attention, copy)
	return &copy, nil
}

func (s *sentimentStoreStub) UpsertCompositeSnapshot(ctx context.Context, snapshot domain.CompositeSnapshot) (*domain.CompositeSnapshot, error) {
	copy := snapshot
	s.composites = append(s.composites, copy)
	return &copy, nil
}

func (s *sentimentStoreStub) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type signalStoreStub struct {
	inserted []domain.Signal
}

func (s *signalStoreStub) InsertSignal(ctx context.Context, signal *domain.Signal) error {
	signal.ID = int64(len(s.inserted) + 1)
	s.inserted = append(s.inserted, *signal)
	return nil
}

type attentionReaderStub struct {
	stats []provider.WikiEditStats
	err   error
}

func (s attentionReaderStub) FetchEditStats(ctx context.Context, page string, days int) ([]provider.WikiEditStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]provider.WikiEditStats(nil), s.stats...), nil
}

var _ Store = (*sentimentStoreStub)(nil)
var _ SignalStore = (*signalStoreStub)(nil)
var _ AttentionReader = (attentionReaderStub{})
