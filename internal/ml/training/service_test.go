package training

import (
	"context"
	"strings"
	"testing"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/ml/common"
	"coinsight/internal/ml/features"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeFeatureStore struct {
	rows []domain.FeatureRow
	err  error
}

func (f *fakeFeatureStore) ListLabeledRows(_ context.Context, _ string, _, _ time.Time) ([]domain.FeatureRow, error) {
	return f.rows, f.err
}

type fakeRegistry struct {
	active    map[string]*domain.ModelVersion
	inserted  []domain.ModelVersion
	activated map[string]int
}

func (f *fakeRegistry) NextVersion(_ context.Context, modelKey string) (int, error) {
	next := 1
	for _, m := range f.inserted {
		if m.ModelKey == modelKey && m.Version >= next {
			next = m.Version + 1
		}
	}
	if a := f.active[modelKey]; a != nil && a.Version >= next {
		next = a.Version + 1
	}
	return next, nil
}

func (f *fakeRegistry) InsertModelVersion(_ context.Context, model domain.ModelVersion) (*domain.ModelVersion, error) {
	f.inserted = append(f.inserted, model)
	stored := model
	return &stored, nil
}

func (f *fakeRegistry) GetActiveModel(_ context.Context, modelKey string) (*domain.ModelVersion, error) {
	return f.active[modelKey], nil
}

func (f *fakeRegistry) ActivateModel(_ context.Context, modelKey string, version int) error {
	if f.activated == nil {
		f.activated = map[string]int{}
	}
	f.activated[modelKey] = version
	return nil
}

func TestTrainAllPromotesFirstVersions(t *testing.T) {
	store := &fakeFeatureStore{rows: labeledRows(60, false)}
	registry := &fakeRegistry{}
	svc := NewService(testTracer, store, registry, nil, Config{
		Interval:        "1h",
		TrainWindowDays: 30,
		MinTrainSamples: 40,
	})

	results, err := svc.TrainAll(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results for both models, got %d", len(results))
	}
	wantKeys := map[string]bool{common.ModelKeyLogReg: false, common.ModelKeyBoost: false}
	for _, r := range results {
		if _, ok := wantKeys[r.ModelKey]; !ok {
			t.Fatalf("unexpected model key %s", r.ModelKey)
		}
		wantKeys[r.ModelKey] = true
		if r.Version != 1 {
			t.Fatalf("expected first version for %s, got %d", r.ModelKey, r.Version)
		}
		if !r.Promoted {
			t.Fatalf("expected %s promoted with no active model", r.ModelKey)
		}
		if r.SampleCount != 60 {
			t.Fatalf("expected 60 samples, got %d", r.SampleCount)
		}
		if r.TestCount == 0 {
			t.Fatalf("expected a non-empty held-out partition for %s", r.ModelKey)
		}
	}
	for key, seen := range wantKeys {
		if !seen {
			t.Fatalf("missing result for %s", key)
		}
	}

	if len(registry.inserted) != 2 {
		t.Fatalf("expected 2 registry inserts, got %d", len(registry.inserted))
	}
	for _, m := range registry.inserted {
		if m.IsActive {
			t.Fatalf("inserts must land inactive, promotion flips the flag: %+v", m)
		}
		if len(m.ArtifactBlob) == 0 {
			t.Fatalf("expected a serialized artifact for %s", m.ModelKey)
		}
		if m.FeatureSpecVersion != features.FeatureSpecVersion() {
			t.Fatalf("expected feature spec %s, got %s", features.FeatureSpecVersion(), m.FeatureSpecVersion)
		}
	}
	if registry.activated[common.ModelKeyLogReg] != 1 || registry.activated[common.ModelKeyBoost] != 1 {
		t.Fatalf("expected both models activated at version 1, got %v", registry.activated)
	}
}

func TestTrainAllRejectsOneClassDataset(t *testing.T) {
	store := &fakeFeatureStore{rows: labeledRows(60, true)}
	registry := &fakeRegistry{}
	svc := NewService(testTracer, store, registry, nil, Config{MinTrainSamples: 40})

	_, err := svc.TrainAll(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected an error for a one-class dataset")
	}
	if !strings.Contains(err.Error(), "two classes") {
		t.Fatalf("expected two-class rejection, got %v", err)
	}
	for _, m := range registry.inserted {
		if m.ModelKey == common.ModelKeyBoost {
			t.Fatalf("boost model must not be inserted when training fails: %+v", m)
		}
	}
}

func TestTrainAllRequiresMinimumSamples(t *testing.T) {
	store := &fakeFeatureStore{rows: labeledRows(20, false)}
	registry := &fakeRegistry{}
	svc := NewService(testTracer, store, registry, nil, Config{MinTrainSamples: 40})

	_, err := svc.TrainAll(context.Background(), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected an error below the sample floor")
	}
	if len(registry.inserted) != 0 {
		t.Fatalf("expected no registry inserts, got %d", len(registry.inserted))
	}
}

func TestShouldPromoteGatesOnAUCMargin(t *testing.T) {
	ctx := context.Background()
	registry := &fakeRegistry{active: map[string]*domain.ModelVersion{
		common.ModelKeyLogReg: {
			ModelKey:    common.ModelKeyLogReg,
			Version:     3,
			IsActive:    true,
			MetricsJSON: `{"auc":0.90}`,
		},
	}}
	svc := NewService(testTracer, &fakeFeatureStore{}, registry, nil, Config{})

	if promote, err := svc.shouldPromote(ctx, common.ModelKeyBoost, 0.55, 400, 1); err != nil || !promote {
		t.Fatalf("expected promotion with no active model, got promote=%v err=%v", promote, err)
	}
	if promote, _ := svc.shouldPromote(ctx, common.ModelKeyLogReg, 0.905, 400, 4); promote {
		t.Fatal("expected no promotion inside the AUC margin")
	}
	if promote, _ := svc.shouldPromote(ctx, common.ModelKeyLogReg, 0.92, 400, 4); !promote {
		t.Fatal("expected promotion when AUC clears the margin")
	}
	if promote, _ := svc.shouldPromote(ctx, common.ModelKeyLogReg, 0.99, 100, 4); promote {
		t.Fatal("expected no promotion on a small held-out set")
	}
	if promote, _ := svc.shouldPromote(ctx, common.ModelKeyLogReg, 0.80, 400, 3); !promote {
		t.Fatal("expected re-activation check to keep the already-active version")
	}
}

func TestChronologicalSplitKeepsOrder(t *testing.T) {
	n := 100
	samples := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = []float64{float64(i)}
		labels[i] = float64(i)
	}

	trainX, trainY, valX, _, testX, testY := chronologicalSplit(samples, labels)
	if len(trainX) != 70 || len(valX) != 15 || len(testX) != 15 {
		t.Fatalf("expected 70/15/15 split, got %d/%d/%d", len(trainX), len(valX), len(testX))
	}
	if trainX[0][0] != 0 || trainX[len(trainX)-1][0] != 69 {
		t.Fatalf("expected train to cover the oldest samples, got [%v..%v]", trainX[0][0], trainX[len(trainX)-1][0])
	}
	if testX[0][0] != 85 || testX[len(testX)-1][0] != 99 {
		t.Fatalf("expected test to cover the newest samples, got [%v..%v]", testX[0][0], testX[len(testX)-1][0])
	}
	if trainY[len(trainY)-1] >= testY[0] {
		t.Fatalf("expected strictly later labels in test, got train tail %v test head %v", trainY[len(trainY)-1], testY[0])
	}
}

func labeledRows(n int, oneClass bool) []domain.FeatureRow {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]domain.FeatureRow, 0, n)
	for i := 0; i < n; i++ {
		up := oneClass || i%2 == 0
		sign := 1.0
		if !up {
			sign = -1.0
		}
		jitter := float64(i%5) * 0.001
		rows = append(rows, domain.FeatureRow{
			Symbol:      "BTC",
			Interval:    "1h",
			OpenTime:    start.Add(time.Duration(i) * time.Hour),
			Ret1H:       sign * (0.01 + jitter),
			Ret4H:       sign * (0.02 + jitter),
			Ret24H:      sign * (0.04 + jitter),
			RSI14:       50 + sign*15,
			MACDHist:    sign * 0.5,
			BBPos:       0.5 + sign*0.3,
			SMAMomentum: sign * 0.01,
			NewsScore:   sign * 0.3,
			MarketMood:  sign * 0.2,
			TargetUp:    &up,
		})
	}
	return rows
}
