package sentiment

import (
	"testing"
	"time"

	"coinsight/internal/provider"
)

func TestBuildAttentionSnapshotsFlagsSpike(t *testing.T) {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	stats := make([]provider.WikiEditStats, 0, 15)
	for i := 0; i < 14; i++ {
		count := 5
		if i%2 == 0 {
			count = 7
		}
		stats = append(stats, provider.WikiEditStats{Page: "Bitcoin", Day: day.AddDate(0, 0, i), EditCount: count, EditorCount: 3})
	}
	stats = append(stats, provider.WikiEditStats{Page: "Bitcoin", Day: day.AddDate(0, 0, 14), EditCount: 60, EditorCount: 25})

	out := BuildAttentionSnapshots("BTC", stats, day.AddDate(0, 0, 15))
	if len(out) != 15 {
		t.Fatalf("expected 15 snapshots, got %d", len(out))
	}
	last := out[len(out)-1]
	if last.EditZ < 3 {
		t.Fatalf("expected a strong spike z-score, got %.4f", last.EditZ)
	}
	for _, snapshot := range out[:minAttentionBaseline] {
		if snapshot.EditZ != 0 {
			t.Fatalf("days without baseline should score zero, got %.4f", snapshot.EditZ)
		}
	}
}

func TestBuildAttentionSnapshotsSortsByDay(t *testing.T) {
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	stats := []provider.WikiEditStats{
		{Day: day.AddDate(0, 0, 2), EditCount: 3},
		{Day: day, EditCount: 1},
		{Day: day.AddDate(0, 0, 1), EditCount: 2},
	}
	out := BuildAttentionSnapshots("BTC", stats, day.AddDate(0, 0, 3))
	for i := 1; i < len(out); i++ {
		if !out[i-1].Day.Before(out[i].Day) {
			t.Fatalf("snapshots out of order at %d", i)
		}
	}
}

func TestAttentionComponentNeedsBaseline(t *testing.T) {
	if c := AttentionComponent(2.5, 3); c.Available {
		t.Fatal("short baseline should not produce a component")
	}
	c := AttentionComponent(4.5, 20)
	if !c.Available {
		t.Fatal("expected available component")
	}
	if c.Score != 1 {
		t.Fatalf("expected clamped score 1, got %.4f", c.Score)
	}
}
