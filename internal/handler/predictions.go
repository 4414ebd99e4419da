package handler

import (
	"net/http"
	"strings"

	"coinsight/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetPredictions godoc
// @Summary      Get the latest model predictions for an asset
// @Description  Returns the newest prediction per model key (logreg, boosted trees, ensemble)
// @Tags         ml
// @Produce      json
// @Param        symbol    path   string  true   "Asset symbol (e.g., BTC, ETH)"
// @Param        interval  query  string  false  "Candle interval"  default(1h)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/predictions/{symbol} [get]
func (h *Handler) GetPredictions(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-predictions")
	defer span.End()

	if h.predictions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction store unavailable"})
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

	interval := c.DefaultQuery("interval", "1h")
	if !domain.IsSupportedInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported interval: " + interval,
			"supported_intervals": domain.SupportedIntervals,
		})
		return
	}

	predictions, err := h.predictions.ListLatestBySymbol(ctx, symbol, interval)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"interval":    interval,
		"predictions": predictions,
	})
}
