package sentiment

import (
	"reflect"
	"testing"

	"coinsight/internal/domain"
)

func TestExtractSymbolsFromTickers(t *testing.T) {
	out := ExtractSymbols("news", "BTC and $ETH rally on ETF inflows", "", nil)
	if !reflect.DeepEqual(out, []string{"BTC", "ETH"}) {
		t.Fatalf("unexpected symbols: %v", out)
	}
}

func TestExtractSymbolsFromAliases(t *testing.T) {
	out := ExtractSymbols("news", "Solana outage follows cardano upgrade", "", nil)
	if !reflect.DeepEqual(out, []string{"ADA", "SOL"}) {
		t.Fatalf("unexpected symbols: %v", out)
	}
}

func TestExtractSymbolsSubredditHint(t *testing.T) {
	out := ExtractSymbols("reddit", "daily discussion", "", map[string]any{"subreddit": "ethereum"})
	if !reflect.DeepEqual(out, []string{"ETH"}) {
		t.Fatalf("unexpected symbols: %v", out)
	}
}

func TestExtractSymbolsFearGreedTagsAll(t *testing.T) {
	out := ExtractSymbols(domain.SourceFearGreed, "Fear & Greed: 30", "", nil)
	if len(out) != len(domain.SupportedSymbols) {
		t.Fatalf("expected all supported symbols, got %v", out)
	}
}

func TestExtractSymbolsNoMatch(t *testing.T) {
	if out := ExtractSymbols("news", "stock markets close flat", "", nil); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}
