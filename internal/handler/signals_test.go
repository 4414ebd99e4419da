package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinsight/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func TestGetSignalsFiltersAndReturns(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	h := &Handler{tracer: tracer}
	store := &signalReaderStub{signals: []*domain.Signal{{
		ID:        1,
		Symbol:    "BTC",
		Interval:  "1h",
		Indicator: domain.IndicatorSentiment,
		Timestamp: time.Date(2026, 8, 13, 19, 0, 0, 0, time.UTC),
		Risk:      domain.RiskLevel3,
		Direction: domain.DirectionLong,
	}}}
	h.SetSignalReader(store)

	router := gin.New()
	router.GET("/api/signals", h.GetSignals)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signals?symbol=btc&risk=3&limit=5", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.lastFilter.Symbol != "BTC" {
		t.Fatalf("expected symbol filter BTC, got %q", store.lastFilter.Symbol)
	}
	if store.lastFilter.Risk == nil || *store.lastFilter.Risk != domain.RiskLevel3 {
		t.Fatalf("expected risk filter 3, got %v", store.lastFilter.Risk)
	}
	if store.lastFilter.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", store.lastFilter.Limit)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("expected one signal, got %d", body.Count)
	}
}

func TestGetSignalsRejectsBadRisk(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	h := &Handler{tracer: tracer}
	h.SetSignalReader(&signalReaderStub{})

	router := gin.New()
	router.GET("/api/signals", h.GetSignals)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/signals?risk=9", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPredictionsRejectsUnknownInterval(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	h := &Handler{tracer: tracer}
	h.SetPredictionReader(predictionReaderStub{})

	router := gin.New()
	router.GET("/api/predictions/:symbol", h.GetPredictions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/BTC?interval=2h", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPredictionsReturnsLatest(t *testing.T) {
	tracer := trace.NewNoopTracerProvider().Tracer("handler-test")
	h := &Handler{tracer: tracer}
	h.SetPredictionReader(predictionReaderStub{predictions: []domain.Prediction{{
		Symbol:   "BTC",
		Interval: "1h",
		ModelKey: "ensemble_up",
		ProbUp:   0.61,
	}}})

	router := gin.New()
	router.GET("/api/predictions/:symbol", h.GetPredictions)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/predictions/BTC", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

type signalReaderStub struct {
	signals    []*domain.Signal
	lastFilter domain.SignalFilter
}

func (s *signalReaderStub) ListSignals(ctx context.Context, filter domain.SignalFilter) ([]*domain.Signal, error) {
	s.lastFilter = filter
	return s.signals, nil
}

type predictionReaderStub struct {
	predictions []domain.Prediction
}

func (s predictionReaderStub) ListLatestBySymbol(ctx context.Context, symbol, interval string) ([]domain.Prediction, error) {
	return s.predictions, nil
}
