package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestWikipediaFetchEditStats(t *testing.T) {
	t.Parallel()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	payload := fmt.Sprintf(`{
		"query": {
			"pages": [{
				"title": "Bitcoin",
				"revisions": [
					{"timestamp": %q, "user": "alice"},
					{"timestamp": %q, "user": "bob"},
					{"timestamp": %q, "user": "alice"}
				]
			}]
		}
	}`,
		today.Add(2*time.Hour).Format(time.RFC3339),
		today.Add(3*time.Hour).Format(time.RFC3339),
		today.AddDate(0, 0, -1).Add(time.Hour).Format(time.RFC3339),
	)

	p := NewWikipediaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("User-Agent") == "" {
				t.Fatal("expected user agent header")
			}
			if got := req.URL.Query().Get("titles"); got != "Bitcoin" {
				t.Fatalf("unexpected titles param: %s", got)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(payload))),
				Header:     make(http.Header),
			}, nil
		}),
	}

	stats, err := p.FetchEditStats(context.Background(), "Bitcoin", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) < 7 {
		t.Fatalf("expected at least 7 days, got %d", len(stats))
	}

	byDay := make(map[int64]WikiEditStats, len(stats))
	for _, s := range stats {
		byDay[s.Day.Unix()] = s
	}
	got := byDay[today.Unix()]
	if got.EditCount != 2 || got.EditorCount != 2 {
		t.Fatalf("unexpected today stats: %+v", got)
	}
	yesterday := byDay[today.AddDate(0, 0, -1).Unix()]
	if yesterday.EditCount != 1 || yesterday.EditorCount != 1 {
		t.Fatalf("unexpected yesterday stats: %+v", yesterday)
	}
	for i := 1; i < len(stats); i++ {
		if !stats[i].Day.After(stats[i-1].Day) {
			t.Fatal("expected days in ascending order")
		}
	}
}

func TestWikipediaFetchEditStatsMissingPage(t *testing.T) {
	t.Parallel()

	p := NewWikipediaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			body := `{"query": {"pages": [{"title": "Nope", "missing": true}]}}`
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewReader([]byte(body))),
				Header:     make(http.Header),
			}, nil
		}),
	}

	if _, err := p.FetchEditStats(context.Background(), "Nope", 7); err == nil {
		t.Fatal("expected error for missing page")
	}
}

func TestWikipediaFetchEditStatsRequiresPage(t *testing.T) {
	t.Parallel()

	p := NewWikipediaProvider(trace.NewNoopTracerProvider().Tracer("test"))
	if _, err := p.FetchEditStats(context.Background(), "  ", 7); err == nil {
		t.Fatal("expected error for empty page")
	}
}
