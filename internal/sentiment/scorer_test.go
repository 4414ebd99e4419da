package sentiment

import (
	"context"
	"errors"
	"testing"

	"coinsight/internal/domain"
)

func TestScorerHeuristicFallback(t *testing.T) {
	scorer := NewScorer(nil, 10)
	items := []domain.SentimentItem{{ID: 1, Title: "Bitcoin breakout", Body: "bull trend"}}

	out, err := scorer.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 score, got %d", len(out))
	}
	if out[0].ScoredBy != domain.ScoredByHeuristic {
		t.Fatalf("expected heuristic backend, got %s", out[0].ScoredBy)
	}
	if out[0].Score <= 0 {
		t.Fatalf("expected bullish score, got %.4f", out[0].Score)
	}
}

func TestScorerUsesLLMWhenAvailable(t *testing.T) {
	scorer := NewScorer(stubLLMScorer{scores: []ItemScore{{
		ItemID:     1,
		Score:      0.8,
		Confidence: 0.9,
		ScoredBy:   "llm:gpt-4o-mini",
	}}}, 10)
	items := []domain.SentimentItem{{ID: 1, Title: "neutral", Body: "neutral"}}

	out, err := scorer.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].ScoredBy != "llm:gpt-4o-mini" {
		t.Fatalf("expected llm override, got %s", out[0].ScoredBy)
	}
	if out[0].Score != 0.8 {
		t.Fatalf("expected llm score, got %.4f", out[0].Score)
	}
}

func TestScorerFallsBackWhenLLMErrors(t *testing.T) {
	scorer := NewScorer(stubLLMScorer{err: errors.New("boom")}, 10)
	items := []domain.SentimentItem{{ID: 1, Title: "hack and dump", Body: "bear"}}

	out, err := scorer.Score(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].ScoredBy != domain.ScoredByHeuristic {
		t.Fatalf("expected heuristic fallback, got %s", out[0].ScoredBy)
	}
	if out[0].Score >= 0 {
		t.Fatalf("expected bearish score, got %.4f", out[0].Score)
	}
}

func TestHeuristicScoreEmptyText(t *testing.T) {
	score, confidence := HeuristicScore("", "")
	if score != 0 {
		t.Fatalf("expected neutral score, got %.4f", score)
	}
	if confidence != 0.25 {
		t.Fatalf("expected floor confidence, got %.4f", confidence)
	}
}

func TestTrimCodeFence(t *testing.T) {
	raw := "```json\n[{\"id\":1}]\n```"
	if got := trimCodeFence(raw); got != `[{"id":1}]` {
		t.Fatalf("unexpected trim result: %q", got)
	}
}

type stubLLMScorer struct {
	scores []ItemScore
	err    error
}

func (s stubLLMScorer) ScoreBatch(ctx context.Context, items []domain.SentimentItem) ([]ItemScore, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]ItemScore(nil), s.scores...), nil
}
