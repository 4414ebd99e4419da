package handler

import (
	"net/http"
	"strings"

	"coinsight/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSentiment godoc
// @Summary      Get the latest sentiment composite for an asset
// @Description  Returns the most recent blended market-mood snapshot with its component scores
// @Tags         sentiment
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/sentiment/{symbol} [get]
func (h *Handler) GetSentiment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-sentiment")
	defer span.End()

	if h.composites == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment service unavailable"})
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	if !domain.IsSupportedSymbol(symbol) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported symbol: " + symbol,
			"supported_symbols": domain.SupportedSymbols,
		})
		return
	}

	snapshot, err := h.composites.LatestComposite(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no sentiment snapshot for " + symbol})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":          snapshot.Symbol,
		"ts":              snapshot.Timestamp,
		"score":           snapshot.Score,
		"confidence":      snapshot.Confidence,
		"direction":       snapshot.Direction,
		"risk":            snapshot.Risk,
		"fear_greed":      snapshot.FearGreed,
		"news_score":      snapshot.NewsScore,
		"social_score":    snapshot.SocialScore,
		"attention_score": snapshot.AttentionScore,
		"item_count":      snapshot.ItemCount,
	})
}

// TriggerSentimentRun godoc
// @Summary      Trigger a sentiment ingestion/scoring cycle manually
// @Description  Runs one sentiment cycle and returns ingest/score/composite counters
// @Tags         sentiment
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/sentiment/run [post]
func (h *Handler) TriggerSentimentRun(c *gin.Context) {
	if h.sentimentRunner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sentiment service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-sentiment-run")
	defer span.End()

	result, err := h.sentimentRunner.RunSentiment(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"items_ingested":      result.ItemsIngested,
		"items_scored":        result.ItemsScored,
		"attention_snapshots": result.AttentionSnapshots,
		"composites_written":  result.CompositesWritten,
		"signals_written":     result.SignalsWritten,
		"errors":              result.Errors,
	})
}
