package anomaly

import (
	"testing"

	"coinsight/internal/domain"
)

func TestFilterPassesSmallDatasets(t *testing.T) {
	t.Parallel()

	rows := make([]domain.FeatureRow, 10)
	f := NewFilter(0.05)
	kept, dropped := f.Apply(rows)
	if len(kept) != 10 || dropped != 0 {
		t.Fatalf("small dataset should pass through, got %d kept %d dropped", len(kept), dropped)
	}
}

func TestFilterDropsExtremeRows(t *testing.T) {
	t.Parallel()

	rows := make([]domain.FeatureRow, 0, 300)
	for i := 0; i < 299; i++ {
		rows = append(rows, domain.FeatureRow{
			Ret1H:      0.001 * float64(i%7),
			RSI14:      50,
			VolumeZ24H: 0.1,
		})
	}
	// One row with an absurd return and volume spike.
	rows = append(rows, domain.FeatureRow{Ret1H: 45, VolumeZ24H: 90, RSI14: 50})

	f := NewFilter(0.01)
	kept, dropped := f.Apply(rows)
	if dropped == 0 {
		t.Fatal("expected at least one dropped row")
	}
	if len(kept)+dropped != len(rows) {
		t.Fatalf("kept %d + dropped %d != %d", len(kept), dropped, len(rows))
	}
	for _, row := range kept {
		if row.Ret1H == 45 {
			t.Fatal("extreme row survived filtering")
		}
	}
}
