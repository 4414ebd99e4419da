package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"coinsight/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type ItemScore struct {
	ItemID     int64
	Score      float64
	Confidence float64
	ScoredBy   string
}

type BatchLLMScorer interface {
	ScoreBatch(ctx context.Context, items []domain.SentimentItem) ([]ItemScore, error)
}

// Scorer assigns a sentiment score to every item. The keyword heuristic runs
// first so each item always gets a score; when an LLM backend is configured
// its answers overwrite the heuristic ones, and an LLM failure leaves the
// heuristic scores standing.
type Scorer struct {
	llm       BatchLLMScorer
	batchSize int
}

func NewScorer(llm BatchLLMScorer, batchSize int) *Scorer {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Scorer{llm: llm, batchSize: batchSize}
}

func (s *Scorer) Score(ctx context.Context, items []domain.SentimentItem) ([]ItemScore, error) {
	if len(items) == 0 {
		return nil, nil
	}

	resultByID := make(map[int64]ItemScore, len(items))
	for _, item := range items {
		score, confidence := HeuristicScore(item.Title, item.Body)
		resultByID[item.ID] = ItemScore{
			ItemID:     item.ID,
			Score:      score,
			Confidence: confidence,
			ScoredBy:   domain.ScoredByHeuristic,
		}
	}

	if s.llm != nil {
		for start := 0; start < len(items); start += s.batchSize {
			end := start + s.batchSize
			if end > len(items) {
				end = len(items)
			}
			scored, err := s.llm.ScoreBatch(ctx, items[start:end])
			if err != nil {
				continue
			}
			for _, row := range scored {
				current, ok := resultByID[row.ItemID]
				if !ok {
					continue
				}
				current.Score = clamp(row.Score, -1, 1)
				current.Confidence = clamp(row.Confidence, 0, 1)
				current.ScoredBy = row.ScoredBy
				if current.ScoredBy == "" {
					current.ScoredBy = domain.ScoredByLLM
				}
				resultByID[row.ItemID] = current
			}
		}
	}

	out := make([]ItemScore, 0, len(items))
	for _, item := range items {
		if scored, ok := resultByID[item.ID]; ok {
			out = append(out, scored)
		}
	}
	return out, nil
}

// HeuristicScore counts bullish and bearish keywords. Confidence grows with
// the margin between the two counts but stays well below LLM territory.
func HeuristicScore(title, body string) (float64, float64) {
	text := strings.ToLower(strings.TrimSpace(title + " " + body))
	if text == "" {
		return 0, 0.25
	}

	bullish := []string{"bull", "breakout", "surge", "rally", "adoption", "outflow", "growth", "buy", "uptrend", "recover"}
	bearish := []string{"bear", "dump", "sell", "crash", "hack", "lawsuit", "ban", "inflow", "decline", "downtrend", "liquidation"}

	bullCount := countMatches(text, bullish)
	bearCount := countMatches(text, bearish)

	raw := float64(bullCount-bearCount) / float64(bullCount+bearCount+1)
	score := clamp(raw, -1, 1)
	confidence := clamp(0.35+(0.1*float64(absInt(bullCount-bearCount))), 0.25, 0.70)
	return score, confidence
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type openAIChatClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIScorer scores batches through an OpenAI-compatible chat endpoint. A
// non-empty baseURL points it at alternative hosts such as Groq.
type OpenAIScorer struct {
	client openAIChatClient
	model  string
}

func NewOpenAIScorer(apiKey, baseURL, model string) *OpenAIScorer {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIScorer{
		client: &openAIClient{client: client},
		model:  model,
	}
}

func (s *OpenAIScorer) ScoreBatch(ctx context.Context, items []domain.SentimentItem) ([]ItemScore, error) {
	if s == nil || s.client == nil || len(items) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("id=%d\n", item.ID))
		sb.WriteString(fmt.Sprintf("title=%s\n", strings.TrimSpace(item.Title)))
		sb.WriteString(fmt.Sprintf("body=%s\n\n", strings.TrimSpace(item.Body)))
	}

	systemPrompt := "You score crypto market sentiment. Return ONLY a JSON array. Each object requires: id (int), score (-1..1), confidence (0..1). No markdown."
	userPrompt := "Items:\n" + sb.String()

	completion, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty scorer completion")
	}

	raw := trimCodeFence(strings.TrimSpace(completion.Choices[0].Message.Content))

	var parsed []struct {
		ID         int64   `json:"id"`
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("parse scorer json: %w", err)
	}

	byID := make(map[int64]struct{}, len(items))
	for _, item := range items {
		byID[item.ID] = struct{}{}
	}

	out := make([]ItemScore, 0, len(parsed))
	for _, row := range parsed {
		if _, ok := byID[row.ID]; !ok {
			continue
		}
		out = append(out, ItemScore{
			ItemID:     row.ID,
			Score:      clamp(row.Score, -1, 1),
			Confidence: clamp(row.Confidence, 0, 1),
			ScoredBy:   domain.ScoredByLLM + ":" + s.model,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func trimCodeFence(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "```") {
		v = strings.TrimPrefix(v, "```")
		v = strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(v), "json") {
			v = strings.TrimSpace(v[4:])
		}
		v = strings.TrimSuffix(v, "```")
		v = strings.TrimSpace(v)
	}
	return v
}

type openAIClient struct {
	client openai.Client
}

func (c *openAIClient) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
