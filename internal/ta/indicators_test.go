package ta

import (
	"math"
	"testing"
)

func TestMeanStd(t *testing.T) {
	t.Parallel()

	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("expected mean 5, got %f", mean)
	}
	if math.Abs(std-2) > 1e-9 {
		t.Fatalf("expected std 2, got %f", std)
	}
}

func TestSMASeries(t *testing.T) {
	t.Parallel()

	out := SMASeries([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatalf("expected NaN warmup, got %v", out[:2])
	}
	if out[2] != 2 || out[4] != 4 {
		t.Fatalf("unexpected SMA values: %v", out)
	}
}

func TestMomentumSeries(t *testing.T) {
	t.Parallel()

	out := MomentumSeries([]float64{100, 110, 121}, 1)
	if math.Abs(out[1]-0.10) > 1e-9 || math.Abs(out[2]-0.10) > 1e-9 {
		t.Fatalf("unexpected momentum: %v", out)
	}
	if !math.IsNaN(out[0]) {
		t.Fatalf("expected NaN at warmup, got %f", out[0])
	}
}

func TestLogReturns(t *testing.T) {
	t.Parallel()

	out := LogReturns([]float64{100, 100 * math.E})
	if math.Abs(out[1]-1) > 1e-9 {
		t.Fatalf("expected log return 1, got %f", out[1])
	}
}

func TestRSISeriesBounds(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	series := RSISeries(closes, 14)
	if series == nil {
		t.Fatal("expected series")
	}
	last := series[len(series)-1]
	if last != 100 {
		t.Fatalf("monotone rising closes should give RSI 100, got %f", last)
	}
}

func TestMACDSeriesConverges(t *testing.T) {
	t.Parallel()

	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 50
	}
	macd, signal := MACDSeries(flat, 12, 26, 9)
	if macd[len(macd)-1] != 0 || signal[len(signal)-1] != 0 {
		t.Fatalf("flat series should give zero MACD, got %f / %f", macd[len(macd)-1], signal[len(signal)-1])
	}
}

func TestBollingerSeries(t *testing.T) {
	t.Parallel()

	values := []float64{1, 1, 1, 1, 1}
	mid, up, low := BollingerSeries(values, 5, 2)
	if mid[4] != 1 || up[4] != 1 || low[4] != 1 {
		t.Fatalf("constant series should collapse bands: %f %f %f", mid[4], up[4], low[4])
	}
	if !math.IsNaN(mid[3]) {
		t.Fatalf("expected NaN before warmup, got %f", mid[3])
	}
}
