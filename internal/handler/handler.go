package handler

import (
	"context"

	"coinsight/internal/domain"
	"coinsight/internal/ml/training"
	"coinsight/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type SentimentRunner interface {
	RunSentiment(ctx context.Context) (domain.SentimentRunResult, error)
}

type MLTrainingRunner interface {
	RunTraining(ctx context.Context) ([]training.ModelTrainResult, error)
}

type CompositeReader interface {
	LatestComposite(ctx context.Context, symbol string) (*domain.CompositeSnapshot, error)
}

type SignalReader interface {
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]*domain.Signal, error)
}

type PredictionReader interface {
	ListLatestBySymbol(ctx context.Context, symbol, interval string) ([]domain.Prediction, error)
}

type Handler struct {
	tracer          trace.Tracer
	priceService    *service.PriceService
	sentimentRunner SentimentRunner
	mlTrainer       MLTrainingRunner
	composites      CompositeReader
	signals         SignalReader
	predictions     PredictionReader
	apiKey          string
}

func New(tracer trace.Tracer, priceService *service.PriceService) *Handler {
	return &Handler{
		tracer:       tracer,
		priceService: priceService,
	}
}

func (h *Handler) SetSentimentRunner(runner SentimentRunner) { h.sentimentRunner = runner }

func (h *Handler) SetMLTrainingRunner(runner MLTrainingRunner) { h.mlTrainer = runner }

func (h *Handler) SetCompositeReader(reader CompositeReader) { h.composites = reader }

func (h *Handler) SetSignalReader(reader SignalReader) { h.signals = reader }

func (h *Handler) SetPredictionReader(reader PredictionReader) { h.predictions = reader }

func (h *Handler) SetAPIKey(key string) { h.apiKey = key }

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/prices", h.GetAllPrices)
	r.GET("/api/prices/:symbol", h.GetPrice)
	r.GET("/api/candles/:symbol", h.GetCandles)
	r.GET("/api/sentiment/:symbol", h.GetSentiment)
	r.GET("/api/signals", h.GetSignals)
	r.GET("/api/predictions/:symbol", h.GetPredictions)

	auth := r.Group("/", APIKeyAuth(h.apiKey))
	auth.POST("/api/sentiment/run", h.TriggerSentimentRun)
	auth.POST("/api/ml/train", h.TriggerMLTraining)
}
