package domain

import "time"

// FeatureRow is one model input row: technical features computed from the
// candle series joined with sentiment aggregates in effect at OpenTime. The
// target label is the sign of the forward return over the configured horizon
// and stays nil until enough future candles exist.
type FeatureRow struct {
	Symbol   string
	Interval string
	OpenTime time.Time

	Ret1H         float64
	Ret4H         float64
	Ret24H        float64
	Volatility6H  float64
	Volatility24H float64
	VolumeZ24H    float64
	RSI14         float64
	MACDHist      float64
	BBPos         float64
	BBWidth       float64
	SMAMomentum   float64

	NewsScore      float64
	SocialScore    float64
	MarketMood     float64
	AttentionZ     float64
	SentimentFresh bool

	TargetUp  *bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ModelVersion is an immutable trained-model record. ArtifactBlob holds the
// serialized model in ArtifactFormat; at most one version per ModelKey is
// active at a time.
type ModelVersion struct {
	ID                 int64
	ModelKey           string
	Version            int
	FeatureSpecVersion string
	TrainedFrom        time.Time
	TrainedTo          time.Time
	TrainedAt          time.Time
	HyperparamsJSON    string
	MetricsJSON        string
	ArtifactFormat     string
	ArtifactBlob       []byte
	IsActive           bool
	ActivatedAt        *time.Time
	CreatedAt          time.Time
}

// Prediction is a stored model output for one feature row, resolved against
// the realized candle once TargetTime has passed.
type Prediction struct {
	ID             int64
	Symbol         string
	Interval       string
	OpenTime       time.Time
	TargetTime     time.Time
	ModelKey       string
	ModelVersion   int
	ProbUp         float64
	Confidence     float64
	Direction      SignalDirection
	Risk           RiskLevel
	SignalID       *int64
	DetailsJSON    string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
	ActualUp       *bool
	IsCorrect      *bool
	RealizedReturn *float64
}
