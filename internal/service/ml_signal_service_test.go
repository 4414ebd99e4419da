package service

import (
	"context"
	"testing"
	"time"

	"coinsight/internal/domain"
)

func TestExtractOpenAndTargetClose(t *testing.T) {
	open := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	target := open.Add(4 * time.Hour)
	candles := []*domain.Candle{
		{OpenTime: target, Close: 120},
		{OpenTime: open, Close: 100},
		{OpenTime: open.Add(2 * time.Hour), Close: 110},
	}
	openClose, targetClose, ok := extractOpenAndTargetClose(candles, open, target)
	if !ok {
		t.Fatal("expected to find open and target candles")
	}
	if openClose != 100 || targetClose != 120 {
		t.Fatalf("unexpected close values open=%.2f target=%.2f", openClose, targetClose)
	}
}

func TestResolveOutcomesGradesPredictions(t *testing.T) {
	open := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	target := open.Add(24 * time.Hour)
	preds := &resolverStoreStub{due: []domain.Prediction{
		{ID: 1, Symbol: "BTC", Interval: "1h", OpenTime: open, TargetTime: target, Direction: domain.DirectionLong, ProbUp: 0.7},
		{ID: 2, Symbol: "ETH", Interval: "1h", OpenTime: open, TargetTime: target, Direction: domain.DirectionShort, ProbUp: 0.3},
	}}
	candles := &candleReaderStub{byRange: map[string][]*domain.Candle{
		"BTC": {{OpenTime: open, Close: 100}, {OpenTime: target, Close: 110}},
		"ETH": {{OpenTime: open, Close: 100}, {OpenTime: target, Close: 95}},
	}}
	svc := NewMLSignalService(testTracer, candles, nil, nil, nil, nil, preds, MLSignalConfig{})

	resolved, err := svc.ResolveOutcomes(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 2 {
		t.Fatalf("expected 2 resolved, got %d", resolved)
	}
	if !preds.resolutions[1].actualUp || !preds.resolutions[1].isCorrect {
		t.Fatalf("long prediction on a rising candle should be correct: %+v", preds.resolutions[1])
	}
	if preds.resolutions[2].actualUp || !preds.resolutions[2].isCorrect {
		t.Fatalf("short prediction on a falling candle should be correct: %+v", preds.resolutions[2])
	}
}

func TestResolveOutcomesSkipsMissingCandles(t *testing.T) {
	open := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	target := open.Add(24 * time.Hour)
	preds := &resolverStoreStub{due: []domain.Prediction{
		{ID: 1, Symbol: "BTC", Interval: "1h", OpenTime: open, TargetTime: target, Direction: domain.DirectionLong},
	}}
	candles := &candleReaderStub{byRange: map[string][]*domain.Candle{
		"BTC": {{OpenTime: open, Close: 100}},
	}}
	svc := NewMLSignalService(testTracer, candles, nil, nil, nil, nil, preds, MLSignalConfig{})

	resolved, err := svc.ResolveOutcomes(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != 0 {
		t.Fatalf("prediction without a target candle should stay unresolved, got %d", resolved)
	}
	if len(preds.resolutions) != 0 {
		t.Fatalf("no resolutions expected, got %v", preds.resolutions)
	}
}

func TestSentimentLookupJoinsCompositeAndAttention(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	news := 0.4
	social := -0.1
	reader := &sentimentReaderStub{
		composite: &domain.CompositeSnapshot{
			Symbol:      "BTC",
			Timestamp:   ts.Add(-time.Hour),
			Score:       0.3,
			NewsScore:   &news,
			SocialScore: &social,
		},
		attention: &domain.AttentionSnapshot{Symbol: "BTC", Day: ts.Add(-12 * time.Hour), EditZ: 2.2},
	}
	svc := NewMLSignalService(testTracer, nil, nil, reader, nil, nil, nil, MLSignalConfig{})

	lookup := svc.sentimentLookup(context.Background())
	got, ok := lookup("BTC", ts)
	if !ok {
		t.Fatal("expected a fresh sentiment join")
	}
	if got.MarketMood != 0.3 || got.NewsScore != 0.4 || got.SocialScore != -0.1 {
		t.Fatalf("unexpected features: %+v", got)
	}
	if got.AttentionZ != 2.2 {
		t.Fatalf("expected attention z from snapshot, got %.2f", got.AttentionZ)
	}
}

func TestSentimentLookupRejectsStaleComposite(t *testing.T) {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	reader := &sentimentReaderStub{
		composite: &domain.CompositeSnapshot{Symbol: "BTC", Timestamp: ts.Add(-48 * time.Hour), Score: 0.9},
	}
	svc := NewMLSignalService(testTracer, nil, nil, reader, nil, nil, nil, MLSignalConfig{})

	lookup := svc.sentimentLookup(context.Background())
	if _, ok := lookup("BTC", ts); ok {
		t.Fatal("stale composite should not join")
	}
}

type resolution struct {
	actualUp       bool
	isCorrect      bool
	realizedReturn float64
}

type resolverStoreStub struct {
	due         []domain.Prediction
	resolutions map[int64]resolution
}

func (s *resolverStoreStub) ListUnresolvedDue(ctx context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error) {
	return append([]domain.Prediction(nil), s.due...), nil
}

func (s *resolverStoreStub) ResolvePrediction(ctx context.Context, predictionID int64, actualUp bool, isCorrect bool, realizedReturn float64) error {
	if s.resolutions == nil {
		s.resolutions = make(map[int64]resolution)
	}
	s.resolutions[predictionID] = resolution{actualUp: actualUp, isCorrect: isCorrect, realizedReturn: realizedReturn}
	return nil
}

type candleReaderStub struct {
	byRange map[string][]*domain.Candle
}

func (s *candleReaderStub) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error) {
	return append([]*domain.Candle(nil), s.byRange[symbol]...), nil
}

func (s *candleReaderStub) GetCandlesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error) {
	return append([]*domain.Candle(nil), s.byRange[symbol]...), nil
}

type sentimentReaderStub struct {
	composite *domain.CompositeSnapshot
	attention *domain.AttentionSnapshot
}

func (s *sentimentReaderStub) LatestCompositeBefore(ctx context.Context, symbol string, ts time.Time) (*domain.CompositeSnapshot, error) {
	return s.composite, nil
}

func (s *sentimentReaderStub) LatestAttentionBefore(ctx context.Context, symbol string, ts time.Time) (*domain.AttentionSnapshot, error) {
	return s.attention, nil
}

var _ PredictionResolverStore = (*resolverStoreStub)(nil)
var _ MLCandleReader = (*candleReaderStub)(nil)
var _ SentimentReader = (*sentimentReaderStub)(nil)
