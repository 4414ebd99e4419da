package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/ml/features"
	"coinsight/internal/ml/inference"
	"coinsight/internal/ml/training"

	"go.opentelemetry.io/otel/trace"
)

type MLCandleReader interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]*domain.Candle, error)
	GetCandlesInRange(ctx context.Context, symbol, interval string, from, to time.Time) ([]*domain.Candle, error)
}

type FeatureRowWriter interface {
	UpsertRows(ctx context.Context, rows []domain.FeatureRow) error
}

// SentimentReader provides the as-of lookups used to join sentiment onto
// historical feature rows.
type SentimentReader interface {
	LatestCompositeBefore(ctx context.Context, symbol string, ts time.Time) (*domain.CompositeSnapshot, error)
	LatestAttentionBefore(ctx context.Context, symbol string, ts time.Time) (*domain.AttentionSnapshot, error)
}

type InferenceRunner interface {
	RunLatest(ctx context.Context, now time.Time) (inference.RunResult, error)
}

type TrainingRunner interface {
	TrainAll(ctx context.Context, now time.Time) ([]training.ModelTrainResult, error)
}

type PredictionResolverStore interface {
	ListUnresolvedDue(ctx context.Context, cutoff time.Time, limit int) ([]domain.Prediction, error)
	ResolvePrediction(ctx context.Context, predictionID int64, actualUp bool, isCorrect bool, realizedReturn float64) error
}

type MLSignalConfig struct {
	Interval string
	// Bars of candle history pulled per symbol when rebuilding features.
	HistoryBars int
	TargetHours int
	// Composites older than this relative to a row's open time do not join.
	SentimentMaxAge time.Duration
}

// MLSignalService ties the feature, training, inference and resolution
// stages together for the background jobs.
type MLSignalService struct {
	tracer      trace.Tracer
	candles     MLCandleReader
	features    FeatureRowWriter
	sentiment   SentimentReader
	inference   InferenceRunner
	training    TrainingRunner
	predictions PredictionResolverStore
	engine      *features.Engine
	cfg         MLSignalConfig
	now         func() time.Time
}

func NewMLSignalService(
	tracer trace.Tracer,
	candles MLCandleReader,
	featureStore FeatureRowWriter,
	sentiment SentimentReader,
	inferenceSvc InferenceRunner,
	trainingSvc TrainingRunner,
	predictions PredictionResolverStore,
	cfg MLSignalConfig,
) *MLSignalService {
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 24 * 90
	}
	if cfg.TargetHours <= 0 {
		cfg.TargetHours = 24
	}
	if cfg.SentimentMaxAge <= 0 {
		cfg.SentimentMaxAge = 6 * time.Hour
	}
	return &MLSignalService{
		tracer:      tracer,
		candles:     candles,
		features:    featureStore,
		sentiment:   sentiment,
		inference:   inferenceSvc,
		training:    trainingSvc,
		predictions: predictions,
		engine:      features.NewEngine(nil),
		cfg:         cfg,
		now:         time.Now,
	}
}

// RefreshFeatures rebuilds feature rows for every symbol from stored candles
// joined with the sentiment history, and reports how many rows were written.
func (s *MLSignalService) RefreshFeatures(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ml-signal-service.refresh-features")
	defer span.End()

	if s.candles == nil || s.features == nil {
		return 0, fmt.Errorf("ml signal service is not fully initialized")
	}

	lookup := s.sentimentLookup(ctx)
	total := 0
	for _, symbol := range domain.SupportedSymbols {
		candles, err := s.candles.GetCandles(ctx, symbol, s.cfg.Interval, s.cfg.HistoryBars)
		if err != nil {
			return total, fmt.Errorf("load candles for %s: %w", symbol, err)
		}
		rows := s.engine.BuildRows(candles, lookup, s.cfg.TargetHours)
		if len(rows) == 0 {
			continue
		}
		if err := s.features.UpsertRows(ctx, rows); err != nil {
			return total, fmt.Errorf("upsert feature rows for %s: %w", symbol, err)
		}
		total += len(rows)
	}
	return total, nil
}

// RunInference scores the newest feature rows with the active models.
func (s *MLSignalService) RunInference(ctx context.Context) (inference.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "ml-signal-service.run-inference")
	defer span.End()

	if s.inference == nil {
		return inference.RunResult{}, nil
	}
	return s.inference.RunLatest(ctx, s.now().UTC())
}

// RunTraining retrains the models on the accumulated labeled rows.
func (s *MLSignalService) RunTraining(ctx context.Context) ([]training.ModelTrainResult, error) {
	ctx, span := s.tracer.Start(ctx, "ml-signal-service.run-training")
	defer span.End()

	if s.training == nil {
		return nil, nil
	}
	return s.training.TrainAll(ctx, s.now().UTC())
}

// ResolveOutcomes grades due predictions against realized candles. A
// prediction whose open or target candle has not been stored yet is skipped
// and picked up on a later pass.
func (s *MLSignalService) ResolveOutcomes(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ml-signal-service.resolve-outcomes")
	defer span.End()

	if s.predictions == nil || s.candles == nil {
		return 0, nil
	}

	now := s.now().UTC()
	due, err := s.predictions.ListUnresolvedDue(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, pred := range due {
		candles, err := s.candles.GetCandlesInRange(ctx, pred.Symbol, pred.Interval, pred.OpenTime, pred.TargetTime)
		if err != nil {
			log.Printf("outcome resolver: candles for %s %s: %v", pred.Symbol, pred.Interval, err)
			continue
		}
		openClose, targetClose, ok := extractOpenAndTargetClose(candles, pred.OpenTime, pred.TargetTime)
		if !ok || openClose == 0 {
			continue
		}

		actualUp := targetClose > openClose
		realizedReturn := targetClose/openClose - 1
		if err := s.predictions.ResolvePrediction(ctx, pred.ID, actualUp, predictionCorrect(pred, actualUp), realizedReturn); err != nil {
			log.Printf("outcome resolver: resolve prediction %d: %v", pred.ID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

func predictionCorrect(pred domain.Prediction, actualUp bool) bool {
	switch pred.Direction {
	case domain.DirectionLong:
		return actualUp
	case domain.DirectionShort:
		return !actualUp
	default:
		return (pred.ProbUp >= 0.5) == actualUp
	}
}

func (s *MLSignalService) sentimentLookup(ctx context.Context) features.SentimentLookup {
	if s.sentiment == nil {
		return nil
	}
	return func(symbol string, t time.Time) (features.SentimentFeatures, bool) {
		snap, err := s.sentiment.LatestCompositeBefore(ctx, symbol, t)
		if err != nil || snap == nil {
			return features.SentimentFeatures{}, false
		}
		if t.UTC().Sub(snap.Timestamp.UTC()) > s.cfg.SentimentMaxAge {
			return features.SentimentFeatures{}, false
		}
		out := features.SentimentFeatures{MarketMood: snap.Score}
		if snap.NewsScore != nil {
			out.NewsScore = *snap.NewsScore
		}
		if snap.SocialScore != nil {
			out.SocialScore = *snap.SocialScore
		}
		if attention, err := s.sentiment.LatestAttentionBefore(ctx, symbol, t); err == nil && attention != nil {
			if t.UTC().Sub(attention.Day.UTC()) <= 48*time.Hour {
				out.AttentionZ = attention.EditZ
			}
		}
		return out, true
	}
}

func extractOpenAndTargetClose(candles []*domain.Candle, open, target time.Time) (float64, float64, bool) {
	var openClose, targetClose float64
	foundOpen := false
	foundTarget := false
	for _, c := range candles {
		if c == nil {
			continue
		}
		if c.OpenTime.Equal(open) {
			openClose = c.Close
			foundOpen = true
		}
		if c.OpenTime.Equal(target) {
			targetClose = c.Close
			foundTarget = true
		}
	}
	return openClose, targetClose, foundOpen && foundTarget
}
