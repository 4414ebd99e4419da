package provider

import "time"

type FearGreedPoint struct {
	Value            int
	Classification   string
	Timestamp        time.Time
	TimeUntilUpdateS int
}

type ContentItem struct {
	Source       string
	SourceItemID string
	Title        string
	URL          string
	Excerpt      string
	Author       string
	PublishedAt  time.Time
	Metadata     map[string]any
}

// WikiEditStats is one day of edit activity on a Wikipedia article.
type WikiEditStats struct {
	Page        string
	Day         time.Time
	EditCount   int
	EditorCount int
}
