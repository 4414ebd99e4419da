package handler

import (
	"net/http"
	"strconv"
	"strings"

	"coinsight/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetSignals godoc
// @Summary      List trading signals
// @Description  Returns stored signals newest first, filterable by symbol, indicator and risk
// @Tags         signals
// @Produce      json
// @Param        symbol     query  string  false  "Asset symbol filter"
// @Param        indicator  query  string  false  "Indicator filter (e.g. sentiment_composite, ml_ensemble_up)"
// @Param        risk       query  int     false  "Risk level filter (1-5)"
// @Param        limit      query  int     false  "Max rows (default 50, max 200)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/signals [get]
func (h *Handler) GetSignals(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-signals")
	defer span.End()

	if h.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal store unavailable"})
		return
	}

	filter := domain.SignalFilter{
		Indicator: strings.TrimSpace(c.Query("indicator")),
	}
	if symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol"))); symbol != "" {
		if !domain.IsSupportedSymbol(symbol) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "unsupported symbol: " + symbol,
				"supported_symbols": domain.SupportedSymbols,
			})
			return
		}
		filter.Symbol = symbol
	}
	if raw := c.Query("risk"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !domain.RiskLevel(n).IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "risk must be an integer between 1 and 5"})
			return
		}
		risk := domain.RiskLevel(n)
		filter.Risk = &risk
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	span.SetAttributes(attribute.String("symbol", filter.Symbol), attribute.String("indicator", filter.Indicator))

	signals, err := h.signals.ListSignals(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}
