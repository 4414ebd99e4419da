package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	wikipediaBaseURL = "https://en.wikipedia.org/w/api.php"
	wikipediaUA      = "coinsight/1.0 (market attention tracker)"
	wikiMaxPages     = 10
)

// WikipediaProvider reads an article's revision history from the MediaWiki
// API. Edit and unique-editor counts per day serve as a public-attention
// signal for the asset the article covers.
type WikipediaProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
}

func NewWikipediaProvider(tracer trace.Tracer) *WikipediaProvider {
	return &WikipediaProvider{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   wikipediaBaseURL,
		userAgent: wikipediaUA,
		tracer:    tracer,
	}
}

// FetchEditStats returns per-day edit statistics for page over the last
// days days, oldest day first. Days with no edits are included with zero
// counts so trailing-window statistics stay aligned.
func (p *WikipediaProvider) FetchEditStats(ctx context.Context, page string, days int) ([]WikiEditStats, error) {
	_, span := p.tracer.Start(ctx, "wikipedia.fetch-edit-stats")
	defer span.End()

	page = strings.TrimSpace(page)
	if page == "" {
		return nil, fmt.Errorf("page is required")
	}
	if days <= 0 {
		days = 30
	}

	now := time.Now().UTC()
	windowStart := now.AddDate(0, 0, -days).Truncate(24 * time.Hour)

	type dayAgg struct {
		edits   int
		editors map[string]struct{}
	}
	byDay := make(map[int64]*dayAgg)

	rvContinue := ""
	for fetched := 0; fetched < wikiMaxPages; fetched++ {
		q := url.Values{}
		q.Set("action", "query")
		q.Set("prop", "revisions")
		q.Set("titles", page)
		q.Set("rvprop", "timestamp|user")
		q.Set("rvlimit", "500")
		q.Set("rvstart", now.Format(time.RFC3339))
		q.Set("rvend", windowStart.Format(time.RFC3339))
		q.Set("format", "json")
		q.Set("formatversion", "2")
		if rvContinue != "" {
			q.Set("rvcontinue", rvContinue)
		}

		payload, err := p.doRequest(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("fetch revisions for %s: %w", page, err)
		}

		for _, pg := range payload.Query.Pages {
			if pg.Missing {
				return nil, fmt.Errorf("wikipedia page not found: %s", page)
			}
			for _, rev := range pg.Revisions {
				ts, err := time.Parse(time.RFC3339, rev.Timestamp)
				if err != nil {
					continue
				}
				day := ts.UTC().Truncate(24 * time.Hour)
				if day.Before(windowStart) {
					continue
				}
				agg, ok := byDay[day.Unix()]
				if !ok {
					agg = &dayAgg{editors: make(map[string]struct{})}
					byDay[day.Unix()] = agg
				}
				agg.edits++
				if user := strings.TrimSpace(rev.User); user != "" {
					agg.editors[user] = struct{}{}
				}
			}
		}

		rvContinue = payload.Continue.RVContinue
		if rvContinue == "" {
			break
		}
	}

	stats := make([]WikiEditStats, 0, days)
	for day := windowStart; !day.After(now); day = day.AddDate(0, 0, 1) {
		s := WikiEditStats{Page: page, Day: day}
		if agg, ok := byDay[day.Unix()]; ok {
			s.EditCount = agg.edits
			s.EditorCount = len(agg.editors)
		}
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Day.Before(stats[j].Day) })
	return stats, nil
}

type wikiRevisionsPayload struct {
	Continue struct {
		RVContinue string `json:"rvcontinue"`
	} `json:"continue"`
	Query struct {
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Revisions []struct {
				Timestamp string `json:"timestamp"`
				User      string `json:"user"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

func (p *WikipediaProvider) doRequest(ctx context.Context, q url.Values) (*wikiRevisionsPayload, error) {
	u := p.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("wikipedia API error %d: %s", resp.StatusCode, string(body))
	}

	var payload wikiRevisionsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode wikipedia response: %w", err)
	}
	return &payload, nil
}
