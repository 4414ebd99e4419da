package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

type FearGreedReader interface {
	FetchLatest(ctx context.Context) (*provider.FearGreedPoint, error)
}

type RedditReader interface {
	FetchHot(ctx context.Context, subreddit string, limit int) ([]provider.ContentItem, error)
}

type RSSReader interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error)
}

type AttentionReader interface {
	FetchEditStats(ctx context.Context, page string, days int) ([]provider.WikiEditStats, error)
}

type SignalStore interface {
	InsertSignal(ctx context.Context, signal *domain.Signal) error
}

type Store interface {
	UpsertItems(ctx context.Context, items []domain.SentimentItem) ([]domain.SentimentItem, error)
	UpsertItemSymbols(ctx context.Context, itemID int64, symbols []string) error
	ListUnscoredItems(ctx context.Context, limit int) ([]domain.SentimentItem, error)
	UpdateItemScore(ctx context.Context, itemID int64, score, confidence float64, scoredBy string, scoredAt time.Time) error
	SourceAverages(ctx context.Context, symbol string, from, to time.Time) (map[string]SourceStats, error)
	UpsertAttentionSnapshot(ctx context.Context, snapshot domain.AttentionSnapshot) (*domain.AttentionSnapshot, error)
	UpsertCompositeSnapshot(ctx context.Context, snapshot domain.CompositeSnapshot) (*domain.CompositeSnapshot, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Interval            string
	LongThreshold       float64
	ShortThreshold      float64
	LookbackHours       int
	NewsFeeds           []string
	NewsFeedItemLimit   int
	RedditSubs          []string
	RedditPostLimit     int
	ScoringBatchSize    int
	AttentionWindowDays int
	RetentionDays       int
}

type Service struct {
	tracer  trace.Tracer
	repo    Store
	scorer  *Scorer
	signals SignalStore

	fearGreed FearGreedReader
	reddit    RedditReader
	rss       RSSReader
	attention AttentionReader

	cfg Config
}

func NewService(
	tracer trace.Tracer,
	repo Store,
	scorer *Scorer,
	signalStore SignalStore,
	fearGreed FearGreedReader,
	reddit RedditReader,
	rss RSSReader,
	attention AttentionReader,
	cfg Config,
) *Service {
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.LongThreshold <= -1 || cfg.LongThreshold >= 1 || cfg.LongThreshold == 0 {
		cfg.LongThreshold = 0.35
	}
	if cfg.ShortThreshold <= -1 || cfg.ShortThreshold >= 1 || cfg.ShortThreshold == 0 {
		cfg.ShortThreshold = -0.35
	}
	if cfg.ShortThreshold > cfg.LongThreshold {
		cfg.ShortThreshold = -0.35
		cfg.LongThreshold = 0.35
	}
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = 12
	}
	if cfg.NewsFeedItemLimit <= 0 {
		cfg.NewsFeedItemLimit = 40
	}
	if cfg.RedditPostLimit <= 0 {
		cfg.RedditPostLimit = 40
	}
	if cfg.ScoringBatchSize <= 0 {
		cfg.ScoringBatchSize = 20
	}
	if cfg.AttentionWindowDays <= 0 {
		cfg.AttentionWindowDays = 30
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if scorer == nil {
		scorer = NewScorer(nil, cfg.ScoringBatchSize)
	}

	return &Service{
		tracer:    tracer,
		repo:      repo,
		scorer:    scorer,
		signals:   signalStore,
		fearGreed: fearGreed,
		reddit:    reddit,
		rss:       rss,
		attention: attention,
		cfg:       cfg,
	}
}

// RunCycle ingests the configured sources, scores what is new, refreshes
// attention snapshots, and writes one composite per symbol. Provider and
// scoring failures are collected as warnings so one dead feed does not
// starve the rest of the cycle.
func (s *Service) RunCycle(ctx context.Context, now time.Time) (domain.SentimentRunResult, error) {
	_, span := s.tracer.Start(ctx, "sentiment.run-cycle")
	defer span.End()

	if s.repo == nil || s.scorer == nil {
		return domain.SentimentRunResult{}, fmt.Errorf("sentiment service dependencies are not initialized")
	}

	now = now.UTC()
	result := domain.SentimentRunResult{}
	items := make([]domain.SentimentItem, 0, 256)
	var fearGreedValue *int

	if s.fearGreed != nil {
		if fg, err := s.fearGreed.FetchLatest(ctx); err != nil {
			result.Errors = append(result.Errors, "fear_greed: "+err.Error())
		} else if fg != nil {
			v := fg.Value
			fearGreedValue = &v
			items = append(items, fearGreedItem(*fg, now))
		}
	}

	if s.rss != nil {
		for _, feed := range s.cfg.NewsFeeds {
			newsItems, err := s.rss.FetchFeed(ctx, feed, s.cfg.NewsFeedItemLimit)
			if err != nil {
				result.Errors = append(result.Errors, "rss:"+feed+": "+err.Error())
				continue
			}
			for _, row := range newsItems {
				items = append(items, contentToItem(now, row))
			}
		}
	}

	if s.reddit != nil {
		for _, subreddit := range s.cfg.RedditSubs {
			posts, err := s.reddit.FetchHot(ctx, subreddit, s.cfg.RedditPostLimit)
			if err != nil {
				result.Errors = append(result.Errors, "reddit:"+subreddit+": "+err.Error())
				continue
			}
			for _, row := range posts {
				items = append(items, contentToItem(now, row))
			}
		}
	}

	persisted, err := s.repo.UpsertItems(ctx, items)
	if err != nil {
		return result, err
	}
	result.ItemsIngested += len(persisted)
	for i := range persisted {
		if i >= len(items) {
			break
		}
		if err := s.repo.UpsertItemSymbols(ctx, persisted[i].ID, items[i].Symbols); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("item_symbols:item=%d: %v", persisted[i].ID, err))
		}
	}

	unscored, err := s.repo.ListUnscoredItems(ctx, maxInt(200, s.cfg.ScoringBatchSize*4))
	if err != nil {
		return result, err
	}
	scored, err := s.scorer.Score(ctx, unscored)
	if err != nil {
		result.Errors = append(result.Errors, "score: "+err.Error())
	}
	for _, row := range scored {
		if err := s.repo.UpdateItemScore(ctx, row.ItemID, row.Score, row.Confidence, row.ScoredBy, now); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("score_update:item=%d: %v", row.ItemID, err))
			continue
		}
		result.ItemsScored++
	}

	attentionBySymbol := s.refreshAttention(ctx, now, &result)

	bucket := now.Truncate(time.Hour)
	from := bucket.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)
	for _, symbol := range domain.SupportedSymbols {
		stats, err := s.repo.SourceAverages(ctx, symbol, from, bucket)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("aggregate:%s: %v", symbol, err))
			continue
		}

		input := CompositeInput{
			LongThreshold:  s.cfg.LongThreshold,
			ShortThreshold: s.cfg.ShortThreshold,
			FearGreedValue: fearGreedValue,
			FearGreed:      componentFromStats(stats[domain.SourceFearGreed]),
			News:           componentFromStats(stats[domain.SourceNews]),
			Social:         componentFromStats(stats[domain.SourceReddit]),
			Attention:      attentionBySymbol[symbol],
		}

		computed := BuildComposite(input)
		itemCount := 0
		for _, stat := range stats {
			itemCount += stat.Count
		}
		detailsJSON, _ := json.Marshal(map[string]any{
			"model_key":  modelKeyMoodV1,
			"score":      computed.Score,
			"confidence": computed.Confidence,
			"weights":    computed.Weights,
			"details":    computed.DetailsText,
			"lookback_h": s.cfg.LookbackHours,
		})

		if _, err := s.repo.UpsertCompositeSnapshot(ctx, domain.CompositeSnapshot{
			Symbol:         symbol,
			Timestamp:      bucket,
			Score:          computed.Score,
			Confidence:     computed.Confidence,
			Direction:      computed.Direction,
			Risk:           computed.Risk,
			FearGreed:      ptrIfAvailable(input.FearGreed),
			NewsScore:      ptrIfAvailable(input.News),
			SocialScore:    ptrIfAvailable(input.Social),
			AttentionScore: ptrIfAvailable(input.Attention),
			ItemCount:      itemCount,
			DetailsJSON:    string(detailsJSON),
		}); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("composite_store:%s: %v", symbol, err))
			continue
		}
		result.CompositesWritten++

		if computed.Direction == domain.DirectionHold || s.signals == nil {
			continue
		}
		signal := &domain.Signal{
			Symbol:    symbol,
			Interval:  s.cfg.Interval,
			Indicator: domain.IndicatorSentiment,
			Timestamp: bucket,
			Risk:      computed.Risk,
			Direction: computed.Direction,
			Details:   computed.DetailsText,
		}
		if err := s.signals.InsertSignal(ctx, signal); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("signal_store:%s: %v", symbol, err))
			continue
		}
		result.SignalsWritten++
	}

	if s.cfg.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)
		if _, err := s.repo.DeleteOlderThan(ctx, cutoff); err != nil {
			result.Errors = append(result.Errors, "retention: "+err.Error())
		}
	}

	return result, nil
}

func (s *Service) refreshAttention(ctx context.Context, now time.Time, result *domain.SentimentRunResult) map[string]CompositeComponent {
	out := make(map[string]CompositeComponent, len(domain.SupportedSymbols))
	if s.attention == nil {
		return out
	}
	for _, symbol := range domain.SupportedSymbols {
		page, ok := domain.WikipediaPage[symbol]
		if !ok {
			continue
		}
		stats, err := s.attention.FetchEditStats(ctx, page, s.cfg.AttentionWindowDays)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("attention:%s: %v", symbol, err))
			continue
		}
		snapshots := BuildAttentionSnapshots(symbol, stats, now)
		for _, snapshot := range snapshots {
			if _, err := s.repo.UpsertAttentionSnapshot(ctx, snapshot); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("attention_store:%s:%s: %v", symbol, snapshot.Day.Format("2006-01-02"), err))
				continue
			}
			result.AttentionSnapshots++
		}
		if len(snapshots) > 0 {
			latest := snapshots[len(snapshots)-1]
			out[symbol] = AttentionComponent(latest.EditZ, len(snapshots)-1)
		}
	}
	return out
}

func fearGreedItem(fg provider.FearGreedPoint, now time.Time) domain.SentimentItem {
	score := clamp((float64(fg.Value)-50.0)/50.0, -1, 1)
	confidence := clamp(0.4+(0.6*absFloat(score)), 0, 1)
	return domain.SentimentItem{
		Source:      domain.SourceFearGreed,
		SourceName:  "alternative.me",
		ExternalID:  fmt.Sprintf("%d", fg.Timestamp.UTC().Unix()),
		Title:       fmt.Sprintf("Fear & Greed: %d (%s)", fg.Value, fg.Classification),
		Body:        strings.TrimSpace(fg.Classification),
		URL:         "https://alternative.me/crypto/fear-and-greed-index/",
		Author:      "alternative.me",
		PublishedAt: fg.Timestamp.UTC(),
		FetchedAt:   now,
		Score:       score,
		Confidence:  confidence,
		ScoredBy:    "index",
		Symbols:     append([]string(nil), domain.SupportedSymbols...),
	}
}

func contentToItem(now time.Time, row provider.ContentItem) domain.SentimentItem {
	sourceName := strings.TrimSpace(row.Source)
	if feed, ok := row.Metadata["feed"].(string); ok && feed != "" {
		sourceName = feed
	}
	if subreddit, ok := row.Metadata["subreddit"].(string); ok && subreddit != "" {
		sourceName = "r/" + subreddit
	}
	return domain.SentimentItem{
		Source:      row.Source,
		SourceName:  sourceName,
		ExternalID:  row.SourceItemID,
		Title:       strings.TrimSpace(row.Title),
		Body:        strings.TrimSpace(row.Excerpt),
		URL:         strings.TrimSpace(row.URL),
		Author:      strings.TrimSpace(row.Author),
		PublishedAt: row.PublishedAt.UTC(),
		FetchedAt:   now.UTC(),
		Symbols:     ExtractSymbols(row.Source, row.Title, row.Excerpt, row.Metadata),
	}
}

func componentFromStats(stat SourceStats) CompositeComponent {
	if stat.Count <= 0 {
		return CompositeComponent{}
	}
	return CompositeComponent{Score: stat.Score, Confidence: stat.Confidence, Available: true}
}

func ptrIfAvailable(component CompositeComponent) *float64 {
	if !component.Available {
		return nil
	}
	v := component.Score
	return &v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
