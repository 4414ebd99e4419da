package anomaly

import (
	"github.com/narumiruna/go-iforest/pkg/iforest"

	"coinsight/internal/domain"
	"coinsight/internal/ml/common"
)

const (
	defaultProportion = 0.02
	minRowsToFilter   = 200
)

// Filter drops feature rows an isolation forest marks as outliers before
// they reach training. Exchange glitches and thin-volume spikes produce
// rows with extreme returns or volume z-scores that otherwise dominate
// gradient updates.
type Filter struct {
	proportion float64
}

func NewFilter(proportion float64) *Filter {
	if proportion <= 0 || proportion >= 0.5 {
		proportion = defaultProportion
	}
	return &Filter{proportion: proportion}
}

// Apply returns the rows that survive outlier screening plus the number
// dropped. Small datasets pass through untouched; the forest needs enough
// mass for its scores to mean anything.
func (f *Filter) Apply(rows []domain.FeatureRow) ([]domain.FeatureRow, int) {
	if len(rows) < minRowsToFilter {
		return rows, 0
	}

	data := make([][]float64, len(rows))
	for i := range rows {
		data[i] = common.FeatureVector(rows[i])
	}

	forest := iforest.NewWithOptions(iforest.Options{
		DetectionType: iforest.DetectionTypeProportion,
		Proportion:    f.proportion,
	})
	forest.Fit(data)
	flags := forest.Predict(data)
	if len(flags) != len(rows) {
		return rows, 0
	}

	kept := make([]domain.FeatureRow, 0, len(rows))
	dropped := 0
	for i := range rows {
		if flags[i] == 1 {
			dropped++
			continue
		}
		kept = append(kept, rows[i])
	}
	if len(kept) == 0 {
		return rows, 0
	}
	return kept, dropped
}
