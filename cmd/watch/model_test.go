package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"coinsight/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
)

func TestUpdateStoresSnapshot(t *testing.T) {
	m := newModel(newAPIClient("http://localhost:8080"))

	msg := snapshotMsg{
		prices: []*domain.PriceSnapshot{
			{Symbol: "BTC", PriceUSD: 50000, Change24hPct: 2.1, Volume24h: 1e9},
			{Symbol: "ETH", PriceUSD: 3000, Change24hPct: -0.8, Volume24h: 5e8},
		},
		signals: []*domain.Signal{{
			Symbol:    "BTC",
			Interval:  "1h",
			Indicator: domain.IndicatorSentiment,
			Timestamp: time.Date(2026, 8, 13, 19, 0, 0, 0, time.UTC),
			Direction: domain.DirectionLong,
			Risk:      domain.RiskLevel3,
		}},
		sentiments: map[string]sentimentView{
			"BTC": {Symbol: "BTC", Score: 0.42, Confidence: 0.6, Direction: domain.DirectionLong, Risk: 4, ItemCount: 17},
		},
	}

	updated, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatal("expected a scheduled refresh tick")
	}
	got := updated.(model)
	if got.loading {
		t.Fatal("expected loading to clear after snapshot")
	}

	view := got.View()
	for _, want := range []string{"coinsight watch", "BTC", "$50000.00", "+2.10%", "ETH", "sentiment_composite", "LONG", "risk=3", "+0.42"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestUpdateRendersError(t *testing.T) {
	m := newModel(newAPIClient("http://localhost:8080"))

	updated, _ := m.Update(snapshotMsg{err: errors.New("connection refused")})
	view := updated.(model).View()
	if !strings.Contains(view, "connection refused") {
		t.Fatalf("expected error in view:\n%s", view)
	}
}

func TestQuitKeys(t *testing.T) {
	m := newModel(newAPIClient("http://localhost:8080"))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Fatalf("expected tea.Quit, got %T", msg)
	}
}
