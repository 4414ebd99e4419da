package sentiment

import (
	"sort"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/provider"
	"coinsight/internal/ta"
)

// Days of baseline needed before an edit z-score is meaningful.
const minAttentionBaseline = 7

// BuildAttentionSnapshots turns raw per-day Wikipedia edit stats into
// snapshots with a trailing z-score on the edit count. Each day is scored
// against the days before it only, so a spike does not inflate its own
// baseline.
func BuildAttentionSnapshots(symbol string, stats []provider.WikiEditStats, fetchedAt time.Time) []domain.AttentionSnapshot {
	if len(stats) == 0 {
		return nil
	}
	sorted := append([]provider.WikiEditStats(nil), stats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day.Before(sorted[j].Day) })

	counts := make([]float64, len(sorted))
	for i := range sorted {
		counts[i] = float64(sorted[i].EditCount)
	}

	out := make([]domain.AttentionSnapshot, 0, len(sorted))
	for i := range sorted {
		editZ := 0.0
		if i >= minAttentionBaseline {
			mean, std := ta.MeanStd(counts[:i])
			if std > 0 {
				editZ = (counts[i] - mean) / std
			}
		}
		out = append(out, domain.AttentionSnapshot{
			Symbol:      symbol,
			Day:         sorted[i].Day.UTC(),
			EditCount:   sorted[i].EditCount,
			EditorCount: sorted[i].EditorCount,
			EditZ:       editZ,
			FetchedAt:   fetchedAt.UTC(),
		})
	}
	return out
}

// AttentionComponent converts the latest edit z-score into a composite
// component. Unusual edit activity reads as elevated market attention, a
// weakly directional signal, so the score is the squashed z and the
// confidence stays modest.
func AttentionComponent(editZ float64, baselineDays int) CompositeComponent {
	if baselineDays < minAttentionBaseline {
		return CompositeComponent{}
	}
	return CompositeComponent{
		Score:      clamp(editZ/3, -1, 1),
		Confidence: 0.40,
		Available:  true,
	}
}
