package common

import "coinsight/internal/domain"

const (
	ModelKeyLogReg   = "logreg_up"
	ModelKeyBoost    = "boost_up"
	ModelKeyEnsemble = "ensemble_up"
)

// FeatureNames is the canonical feature ordering. FeatureVector, trained
// artifacts and anomaly filtering all depend on this order; append only.
var FeatureNames = []string{
	"ret_1h",
	"ret_4h",
	"ret_24h",
	"volatility_6h",
	"volatility_24h",
	"volume_z_24h",
	"rsi_14",
	"macd_hist",
	"bb_pos",
	"bb_width",
	"sma_momentum",
	"news_score",
	"social_score",
	"market_mood",
	"attention_z",
}

// FeatureVector flattens a row into FeatureNames order.
func FeatureVector(row domain.FeatureRow) []float64 {
	return []float64{
		row.Ret1H,
		row.Ret4H,
		row.Ret24H,
		row.Volatility6H,
		row.Volatility24H,
		row.VolumeZ24H,
		row.RSI14,
		row.MACDHist,
		row.BBPos,
		row.BBWidth,
		row.SMAMomentum,
		row.NewsScore,
		row.SocialScore,
		row.MarketMood,
		row.AttentionZ,
	}
}

// TargetLabel returns the row's label as 0/1, or false when unlabeled.
func TargetLabel(row domain.FeatureRow) (float64, bool) {
	if row.TargetUp == nil {
		return 0, false
	}
	if *row.TargetUp {
		return 1, true
	}
	return 0, true
}

func Clamp01(v float64) float64 {
	if v != v { // NaN
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DirectionFor maps an up-probability to a trade direction given the
// configured long/short thresholds.
func DirectionFor(probUp, longThreshold, shortThreshold float64) domain.SignalDirection {
	switch {
	case probUp >= longThreshold:
		return domain.DirectionLong
	case probUp <= shortThreshold:
		return domain.DirectionShort
	default:
		return domain.DirectionHold
	}
}

// ConfidenceFor is the distance from indifference, scaled to [0, 1].
func ConfidenceFor(probUp float64) float64 {
	c := 2 * (probUp - 0.5)
	if c < 0 {
		c = -c
	}
	return Clamp01(c)
}

// RiskFor buckets confidence into risk levels: low confidence means high
// risk for anyone acting on the signal.
func RiskFor(confidence float64) domain.RiskLevel {
	switch {
	case confidence >= 0.8:
		return domain.RiskLevel1
	case confidence >= 0.6:
		return domain.RiskLevel2
	case confidence >= 0.4:
		return domain.RiskLevel3
	case confidence >= 0.2:
		return domain.RiskLevel4
	default:
		return domain.RiskLevel5
	}
}
