package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/ml/common"
	"coinsight/internal/ml/ensemble"
	"coinsight/internal/ml/models/logreg"
	"coinsight/internal/ml/models/xgboost"

	"go.opentelemetry.io/otel/trace"
)

type FeatureReader interface {
	ListLatestByInterval(ctx context.Context, interval string) ([]domain.FeatureRow, error)
}

type ModelRegistry interface {
	GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error)
}

type PredictionStore interface {
	UpsertPrediction(ctx context.Context, prediction domain.Prediction) (*domain.Prediction, error)
	AttachSignalID(ctx context.Context, predictionID, signalID int64) error
}

type SignalStore interface {
	InsertSignal(ctx context.Context, signal *domain.Signal) error
}

// CompositeReader exposes the latest sentiment composite per symbol for the
// ensemble blend.
type CompositeReader interface {
	LatestComposite(ctx context.Context, symbol string) (*domain.CompositeSnapshot, error)
}

// Composites older than this are treated as stale and excluded from the
// ensemble.
const maxCompositeAge = 2 * time.Hour

type Config struct {
	Interval       string
	TargetHours    int
	LongThreshold  float64
	ShortThreshold float64
}

type Service struct {
	tracer      trace.Tracer
	features    FeatureReader
	registry    ModelRegistry
	predictions PredictionStore
	signals     SignalStore
	composites  CompositeReader
	ensemble    *ensemble.Service
	cfg         Config
}

type RunResult struct {
	Predictions int
	Signals     int
}

func NewService(
	tracer trace.Tracer,
	features FeatureReader,
	registry ModelRegistry,
	predictions PredictionStore,
	signals SignalStore,
	composites CompositeReader,
	ensembleSvc *ensemble.Service,
	cfg Config,
) *Service {
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.TargetHours <= 0 {
		cfg.TargetHours = 24
	}
	if cfg.LongThreshold <= 0 || cfg.LongThreshold >= 1 {
		cfg.LongThreshold = 0.55
	}
	if cfg.ShortThreshold <= 0 || cfg.ShortThreshold >= 1 {
		cfg.ShortThreshold = 0.45
	}
	if ensembleSvc == nil {
		ensembleSvc = ensemble.NewService()
	}
	return &Service{
		tracer:      tracer,
		features:    features,
		registry:    registry,
		predictions: predictions,
		signals:     signals,
		composites:  composites,
		ensemble:    ensembleSvc,
		cfg:         cfg,
	}
}

// RunLatest predicts on the newest feature row per symbol with the active
// models, blends in the sentiment composite, and emits signals for
// non-hold directions.
func (s *Service) RunLatest(ctx context.Context, now time.Time) (RunResult, error) {
	_, span := s.tracer.Start(ctx, "inference.run-latest")
	defer span.End()

	if s.features == nil || s.registry == nil || s.predictions == nil || s.signals == nil {
		return RunResult{}, fmt.Errorf("inference service is not fully initialized")
	}

	logVersion, logPredict, err := s.loadModel(ctx, common.ModelKeyLogReg)
	if err != nil {
		return RunResult{}, err
	}
	boostVersion, boostPredict, err := s.loadModel(ctx, common.ModelKeyBoost)
	if err != nil {
		return RunResult{}, err
	}
	if logPredict == nil && boostPredict == nil {
		return RunResult{}, nil
	}

	rows, err := s.features.ListLatestByInterval(ctx, s.cfg.Interval)
	if err != nil {
		return RunResult{}, err
	}
	result := RunResult{}
	for i := range rows {
		row := rows[i]
		targetTime := row.OpenTime.UTC().Add(time.Duration(s.cfg.TargetHours) * time.Hour)
		features := common.FeatureVector(row)

		sentiScore, sentiFresh := s.sentimentComponent(ctx, row.Symbol, now)
		logProb := 0.5
		boostProb := 0.5

		if logPredict != nil {
			logProb = common.Clamp01(logPredict(features))
			pred, hasSignal, err := s.persistModelPrediction(ctx, row, common.ModelKeyLogReg, logVersion, logProb, targetTime, 0)
			if err != nil {
				return result, err
			}
			if pred != nil {
				result.Predictions++
			}
			if hasSignal {
				result.Signals++
			}
		}

		if boostPredict != nil {
			boostProb = common.Clamp01(boostPredict(features))
			pred, hasSignal, err := s.persistModelPrediction(ctx, row, common.ModelKeyBoost, boostVersion, boostProb, targetTime, 0)
			if err != nil {
				return result, err
			}
			if pred != nil {
				result.Predictions++
			}
			if hasSignal {
				result.Signals++
			}
		}

		ensembleScore := s.ensemble.Score(ensemble.Components{
			SentimentScore: sentiScore,
			SentimentFresh: sentiFresh,
			LogRegProb:     logProb,
			BoostProb:      boostProb,
		})
		if ensembleScore > 1 {
			ensembleScore = 1
		}
		if ensembleScore < -1 {
			ensembleScore = -1
		}
		ensembleProb := common.Clamp01((ensembleScore + 1) / 2)
		version := maxInt(logVersion, boostVersion)
		if version <= 0 {
			version = 1
		}
		pred, hasSignal, err := s.persistModelPrediction(ctx, row, common.ModelKeyEnsemble, version, ensembleProb, targetTime, ensembleScore)
		if err != nil {
			return result, err
		}
		if pred != nil {
			result.Predictions++
		}
		if hasSignal {
			result.Signals++
		}
	}

	return result, nil
}

func (s *Service) sentimentComponent(ctx context.Context, symbol string, now time.Time) (float64, bool) {
	if s.composites == nil {
		return 0, false
	}
	snap, err := s.composites.LatestComposite(ctx, symbol)
	if err != nil || snap == nil {
		return 0, false
	}
	if now.UTC().Sub(snap.Timestamp.UTC()) > maxCompositeAge {
		return 0, false
	}
	return snap.Score, true
}

func (s *Service) persistModelPrediction(
	ctx context.Context,
	row domain.FeatureRow,
	modelKey string,
	modelVersion int,
	probUp float64,
	targetTime time.Time,
	ensembleScore float64,
) (*domain.Prediction, bool, error) {
	confidence := common.ConfidenceFor(probUp)
	direction := common.DirectionFor(probUp, s.cfg.LongThreshold, s.cfg.ShortThreshold)
	if modelKey == common.ModelKeyEnsemble {
		direction = ensemble.Direction(ensembleScore)
	}
	risk := common.RiskFor(confidence)
	detailsJSON := s.buildDetailsJSON(modelKey, modelVersion, probUp, confidence, ensembleScore)

	pred, err := s.predictions.UpsertPrediction(ctx, domain.Prediction{
		Symbol:       row.Symbol,
		Interval:     row.Interval,
		OpenTime:     row.OpenTime.UTC(),
		TargetTime:   targetTime.UTC(),
		ModelKey:     modelKey,
		ModelVersion: modelVersion,
		ProbUp:       probUp,
		Confidence:   confidence,
		Direction:    direction,
		Risk:         risk,
		DetailsJSON:  detailsJSON,
	})
	if err != nil {
		return nil, false, err
	}

	if direction == domain.DirectionHold {
		return pred, false, nil
	}
	signal := &domain.Signal{
		Symbol:    row.Symbol,
		Interval:  row.Interval,
		Indicator: indicatorForModelKey(modelKey),
		Timestamp: row.OpenTime.UTC(),
		Risk:      risk,
		Direction: direction,
		Details:   s.signalDetails(modelKey, modelVersion, probUp, confidence, ensembleScore),
	}
	if err := s.signals.InsertSignal(ctx, signal); err != nil {
		return pred, false, err
	}
	if signal.ID > 0 {
		if err := s.predictions.AttachSignalID(ctx, pred.ID, signal.ID); err != nil {
			return pred, false, err
		}
	}
	return pred, true, nil
}

func (s *Service) loadModel(ctx context.Context, modelKey string) (int, func([]float64) float64, error) {
	active, err := s.registry.GetActiveModel(ctx, modelKey)
	if err != nil || active == nil {
		return 0, nil, err
	}
	switch modelKey {
	case common.ModelKeyLogReg:
		model, err := logreg.UnmarshalBinary(active.ArtifactBlob)
		if err != nil {
			return 0, nil, err
		}
		return active.Version, model.PredictProb, nil
	case common.ModelKeyBoost:
		model, err := xgboost.UnmarshalBinary(active.ArtifactBlob)
		if err != nil {
			return 0, nil, err
		}
		return active.Version, model.PredictProb, nil
	default:
		return 0, nil, fmt.Errorf("unknown model key: %s", modelKey)
	}
}

func (s *Service) buildDetailsJSON(modelKey string, version int, probUp, confidence, ensembleScore float64) string {
	payload := map[string]any{
		"model_key":     modelKey,
		"model_version": version,
		"prob_up":       roundFloat(probUp),
		"confidence":    roundFloat(confidence),
		"target_hours":  s.cfg.TargetHours,
	}
	if modelKey == common.ModelKeyEnsemble {
		payload["ensemble_score"] = roundFloat(ensembleScore)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (s *Service) signalDetails(modelKey string, version int, probUp, confidence, ensembleScore float64) string {
	if modelKey == common.ModelKeyEnsemble {
		return fmt.Sprintf(
			"model_key=%s;model_version=%d;prob_up=%.4f;confidence=%.4f;target_hours=%d;ensemble_score=%.4f",
			modelKey, version, probUp, confidence, s.cfg.TargetHours, ensembleScore,
		)
	}
	return fmt.Sprintf(
		"model_key=%s;model_version=%d;prob_up=%.4f;confidence=%.4f;target_hours=%d",
		modelKey, version, probUp, confidence, s.cfg.TargetHours,
	)
}

func indicatorForModelKey(modelKey string) string {
	switch modelKey {
	case common.ModelKeyLogReg:
		return domain.IndicatorMLLogReg
	case common.ModelKeyBoost:
		return domain.IndicatorMLBoost
	default:
		return domain.IndicatorMLEnsemble
	}
}

func roundFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10000) / 10000
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
