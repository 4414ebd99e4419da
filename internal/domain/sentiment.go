package domain

import "time"

// Sentiment sources. Each maps to a provider and a composite component.
const (
	SourceNews      = "news"
	SourceReddit    = "reddit"
	SourceFearGreed = "fear_greed"
	SourceWikipedia = "wikipedia"
)

// SentimentItem is one piece of ingested content (a headline, a Reddit post)
// with its sentiment annotation. Score is in [-1, 1], Confidence in [0, 1].
type SentimentItem struct {
	ID          int64
	Source      string
	SourceName  string
	ExternalID  string
	Title       string
	Body        string
	URL         string
	Author      string
	PublishedAt time.Time
	FetchedAt   time.Time
	Score       float64
	Confidence  float64
	ScoredBy    string
	Symbols     []string
}

// Scoring backends recorded on items.
const (
	ScoredByHeuristic = "heuristic"
	ScoredByLLM       = "llm"
)

// FearGreedReading is the alternative.me index value for one day.
type FearGreedReading struct {
	Value          int
	Classification string
	Timestamp      time.Time
}

// AttentionSnapshot captures one day of Wikipedia edit activity for an
// asset's article. EditZ is the edit count's z-score against a trailing
// window, the signal used by the composite.
type AttentionSnapshot struct {
	ID          int64
	Symbol      string
	Day         time.Time
	EditCount   int
	EditorCount int
	EditZ       float64
	FetchedAt   time.Time
}

// SourceSentiment is an aggregate of scored items from one source for one
// symbol over the aggregation window.
type SourceSentiment struct {
	Source    string
	Symbol    string
	Score     float64
	ItemCount int
}

// CompositeSnapshot is the blended market-mood reading for one symbol:
// fear/greed, news, social and attention components weighted together.
type CompositeSnapshot struct {
	ID             int64
	Symbol         string
	Timestamp      time.Time
	Score          float64
	Confidence     float64
	Direction      SignalDirection
	Risk           RiskLevel
	FearGreed      *float64
	NewsScore      *float64
	SocialScore    *float64
	AttentionScore *float64
	ItemCount      int
	DetailsJSON    string
}

// SentimentRunResult summarizes one ingestion/scoring cycle.
type SentimentRunResult struct {
	ItemsIngested      int
	ItemsScored        int
	AttentionSnapshots int
	CompositesWritten  int
	SignalsWritten     int
	Errors             []string
}
