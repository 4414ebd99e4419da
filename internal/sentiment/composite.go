package sentiment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"coinsight/internal/domain"
)

const modelKeyMoodV1 = "market_mood_v1"

type CompositeComponent struct {
	Score      float64
	Confidence float64
	Available  bool
}

type CompositeInput struct {
	LongThreshold  float64
	ShortThreshold float64

	FearGreedValue *int
	FearGreed      CompositeComponent
	News           CompositeComponent
	Social         CompositeComponent
	Attention      CompositeComponent
}

type CompositeResult struct {
	Score       float64
	Confidence  float64
	Direction   domain.SignalDirection
	Risk        domain.RiskLevel
	Weights     map[string]float64
	DetailsText string
}

// BuildComposite blends the available components into a market-mood score in
// [-1, 1]. Weights are renormalized over the components that reported, so a
// missing source shifts weight to the rest instead of dragging toward zero.
func BuildComposite(in CompositeInput) CompositeResult {
	weights := map[string]float64{
		"fear_greed": 0.20,
		"news":       0.35,
		"social":     0.25,
		"attention":  0.20,
	}

	components := map[string]CompositeComponent{
		"fear_greed": in.FearGreed,
		"news":       in.News,
		"social":     in.Social,
		"attention":  in.Attention,
	}

	activeWeight := 0.0
	for name, c := range components {
		if c.Available {
			activeWeight += weights[name]
		}
	}

	if activeWeight <= 0 {
		return CompositeResult{
			Score:       0,
			Confidence:  0,
			Direction:   domain.DirectionHold,
			Risk:        domain.RiskLevel5,
			Weights:     map[string]float64{},
			DetailsText: fmt.Sprintf("model_key=%s;score=0.0000;confidence=0.0000;attention=na;fng=na;news=na;social=na", modelKeyMoodV1),
		}
	}

	normalized := make(map[string]float64, len(weights))
	for name := range weights {
		if !components[name].Available {
			continue
		}
		normalized[name] = weights[name] / activeWeight
	}

	score := 0.0
	confidence := 0.0
	for name, w := range normalized {
		score += w * clamp(components[name].Score, -1, 1)
		confidence += w * clamp(components[name].Confidence, 0, 1)
	}
	score = clamp(score, -1, 1)
	confidence = clamp(confidence, 0, 1)

	direction := domain.DirectionHold
	if score >= in.LongThreshold {
		direction = domain.DirectionLong
	} else if score <= in.ShortThreshold {
		direction = domain.DirectionShort
	}

	conviction := math.Abs(score) * confidence
	risk := domain.RiskLevel5
	switch {
	case conviction >= 0.70:
		risk = domain.RiskLevel2
	case conviction >= 0.50:
		risk = domain.RiskLevel3
	case conviction >= 0.30:
		risk = domain.RiskLevel4
	default:
		risk = domain.RiskLevel5
	}

	return CompositeResult{
		Score:       score,
		Confidence:  confidence,
		Direction:   direction,
		Risk:        risk,
		Weights:     normalized,
		DetailsText: formatDetails(in, score, confidence),
	}
}

func formatDetails(in CompositeInput, score, confidence float64) string {
	componentText := func(c CompositeComponent) string {
		if !c.Available {
			return "na"
		}
		return fmt.Sprintf("%.4f", clamp(c.Score, -1, 1))
	}

	parts := []string{
		fmt.Sprintf("model_key=%s", modelKeyMoodV1),
		fmt.Sprintf("score=%.4f", score),
		fmt.Sprintf("confidence=%.4f", confidence),
		fmt.Sprintf("attention=%s", componentText(in.Attention)),
		fmt.Sprintf("fng=%s", componentText(in.FearGreed)),
		fmt.Sprintf("news=%s", componentText(in.News)),
		fmt.Sprintf("social=%s", componentText(in.Social)),
	}
	if in.FearGreedValue != nil {
		parts = append(parts, fmt.Sprintf("fng_value=%d", *in.FearGreedValue))
	}
	sort.Strings(parts[3:])
	return strings.Join(parts, ";")
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
