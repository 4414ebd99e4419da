package features

import (
	"math"
	"sort"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/ta"
)

const (
	featureSpecVersion = "v2"
	rsiPeriod          = 14
	macdFast           = 12
	macdSlow           = 26
	macdSignal         = 9
	bbPeriod           = 20
	bbStdDevs          = 2.0
	smaPeriod          = 24
)

// SentimentFeatures are the sentiment aggregates joined onto a feature row.
// Fresh reports whether a composite snapshot close enough to the row's open
// time existed; stale rows carry neutral zeros.
type SentimentFeatures struct {
	NewsScore   float64
	SocialScore float64
	MarketMood  float64
	AttentionZ  float64
	Fresh       bool
}

// SentimentLookup resolves the sentiment aggregates in effect for symbol at
// time t. Returning false means no usable snapshot existed.
type SentimentLookup func(symbol string, t time.Time) (SentimentFeatures, bool)

type Engine struct {
	now func() time.Time
}

func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{now: now}
}

func FeatureSpecVersion() string {
	return featureSpecVersion
}

// BuildRows computes feature rows from a single symbol/interval candle
// series joined with sentiment aggregates. The forward target over
// targetHours is only set where enough future candles exist; the newest
// rows stay unlabeled until price history catches up.
func (e *Engine) BuildRows(candles []*domain.Candle, sentiment SentimentLookup, targetHours int) []domain.FeatureRow {
	normalized := normalizeCandles(candles)
	if len(normalized) == 0 {
		return nil
	}
	if targetHours <= 0 {
		targetHours = 24
	}

	barDur, ok := domain.IntervalDuration(normalized[0].Interval)
	if !ok {
		return nil
	}
	barsPerHour := float64(time.Hour) / float64(barDur)

	lag1h := barsFromHours(1, barsPerHour)
	lag4h := barsFromHours(4, barsPerHour)
	lag24h := barsFromHours(24, barsPerHour)
	win6h := barsFromHours(6, barsPerHour)
	win24h := barsFromHours(24, barsPerHour)
	targetBars := barsFromHours(targetHours, barsPerHour)

	closes := make([]float64, len(normalized))
	volumes := make([]float64, len(normalized))
	for i := range normalized {
		closes[i] = normalized[i].Close
		volumes[i] = normalized[i].Volume
	}

	rsi := ta.RSISeries(closes, rsiPeriod)
	macdLine, macdSig := ta.MACDSeries(closes, macdFast, macdSlow, macdSignal)
	bbMiddle, bbUpper, bbLower := ta.BollingerSeries(closes, bbPeriod, bbStdDevs)
	sma := ta.SMASeries(closes, smaPeriod)

	warmup := maxInt(lag24h, win24h, macdSlow, bbPeriod, smaPeriod, rsiPeriod+1)

	now := e.now().UTC()
	rows := make([]domain.FeatureRow, 0, len(normalized))
	for i := range normalized {
		if i < warmup {
			continue
		}

		ret1h := pctReturn(closes, i, lag1h)
		ret4h := pctReturn(closes, i, lag4h)
		ret24h := pctReturn(closes, i, lag24h)
		if anyNaN(ret1h, ret4h, ret24h) {
			continue
		}

		vol6h := rollingVolatility(closes, i, win6h)
		vol24h := rollingVolatility(closes, i, win24h)
		if anyNaN(vol6h, vol24h) {
			continue
		}

		volZ24 := rollingZ(volumes, i, win24h)
		if math.IsNaN(volZ24) {
			continue
		}

		if i >= len(rsi) || rsi == nil {
			continue
		}
		rsiVal := rsi[i]
		macdHist := macdLine[i] - macdSig[i]
		bbU := bbUpper[i]
		bbL := bbLower[i]
		bbM := bbMiddle[i]
		smaVal := sma[i]
		if anyNaN(rsiVal, macdHist, bbU, bbL, bbM, smaVal) {
			continue
		}
		bbWidth := 0.0
		if bbM != 0 {
			bbWidth = (bbU - bbL) / bbM
		}
		bbPos := 0.5
		if bbU != bbL {
			bbPos = (closes[i] - bbL) / (bbU - bbL)
		}
		smaMomentum := 0.0
		if smaVal != 0 {
			smaMomentum = closes[i]/smaVal - 1
		}

		var senti SentimentFeatures
		if sentiment != nil {
			if s, ok := sentiment(normalized[i].Symbol, normalized[i].OpenTime); ok {
				senti = s
				senti.Fresh = true
			}
		}

		var target *bool
		if targetIdx := i + targetBars; targetIdx < len(closes) {
			up := closes[targetIdx] > closes[i]
			target = &up
		}

		rows = append(rows, domain.FeatureRow{
			Symbol:         normalized[i].Symbol,
			Interval:       normalized[i].Interval,
			OpenTime:       normalized[i].OpenTime.UTC(),
			Ret1H:          ret1h,
			Ret4H:          ret4h,
			Ret24H:         ret24h,
			Volatility6H:   vol6h,
			Volatility24H:  vol24h,
			VolumeZ24H:     volZ24,
			RSI14:          rsiVal,
			MACDHist:       macdHist,
			BBPos:          bbPos,
			BBWidth:        bbWidth,
			SMAMomentum:    smaMomentum,
			NewsScore:      senti.NewsScore,
			SocialScore:    senti.SocialScore,
			MarketMood:     senti.MarketMood,
			AttentionZ:     senti.AttentionZ,
			SentimentFresh: senti.Fresh,
			TargetUp:       target,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return rows
}

func barsFromHours(hours int, barsPerHour float64) int {
	bars := int(math.Round(float64(hours) * barsPerHour))
	if bars < 1 {
		bars = 1
	}
	return bars
}

func maxInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func normalizeCandles(in []*domain.Candle) []domain.Candle {
	out := make([]domain.Candle, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OpenTime.Before(out[j].OpenTime)
	})
	return out
}

func pctReturn(values []float64, idx int, lag int) float64 {
	if idx-lag < 0 || idx >= len(values) {
		return math.NaN()
	}
	base := values[idx-lag]
	if base == 0 {
		return math.NaN()
	}
	return (values[idx] / base) - 1
}

func rollingVolatility(closes []float64, idx int, window int) float64 {
	if window <= 1 || idx-window+1 <= 0 || idx >= len(closes) {
		return math.NaN()
	}
	rets := make([]float64, 0, window)
	for j := idx - window + 1; j <= idx; j++ {
		if j-1 < 0 || closes[j-1] == 0 {
			return math.NaN()
		}
		rets = append(rets, (closes[j]/closes[j-1])-1)
	}
	_, std := ta.MeanStd(rets)
	return std
}

func rollingZ(values []float64, idx int, window int) float64 {
	if window <= 0 || idx-window < 0 || idx >= len(values) {
		return math.NaN()
	}
	mean, std := ta.MeanStd(values[idx-window : idx])
	if std == 0 {
		return 0
	}
	return (values[idx] - mean) / std
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
