package sentiment

import (
	"math"
	"strings"
	"testing"

	"coinsight/internal/domain"
)

func TestBuildCompositeRenormalizesMissingComponents(t *testing.T) {
	out := BuildComposite(CompositeInput{
		LongThreshold:  0.35,
		ShortThreshold: -0.35,
		News:           CompositeComponent{Score: 0.8, Confidence: 0.9, Available: true},
		Social:         CompositeComponent{Score: 0.4, Confidence: 0.7, Available: true},
	})

	// news .35 and social .25 renormalize to 7/12 and 5/12.
	want := (7.0*0.8 + 5.0*0.4) / 12.0
	if math.Abs(out.Score-want) > 1e-9 {
		t.Fatalf("expected score %.6f, got %.6f", want, out.Score)
	}
	if out.Direction != domain.DirectionLong {
		t.Fatalf("expected long direction, got %s", out.Direction)
	}
	if _, ok := out.Weights["fear_greed"]; ok {
		t.Fatal("missing component should carry no weight")
	}
}

func TestBuildCompositeHoldsWithoutComponents(t *testing.T) {
	out := BuildComposite(CompositeInput{LongThreshold: 0.35, ShortThreshold: -0.35})
	if out.Score != 0 || out.Confidence != 0 {
		t.Fatalf("expected zero score and confidence, got %.4f / %.4f", out.Score, out.Confidence)
	}
	if out.Direction != domain.DirectionHold {
		t.Fatalf("expected hold, got %s", out.Direction)
	}
	if out.Risk != domain.RiskLevel5 {
		t.Fatalf("expected max risk, got %d", out.Risk)
	}
}

func TestBuildCompositeRiskTracksConviction(t *testing.T) {
	strong := BuildComposite(CompositeInput{
		LongThreshold:  0.35,
		ShortThreshold: -0.35,
		News:           CompositeComponent{Score: -0.9, Confidence: 0.9, Available: true},
	})
	if strong.Direction != domain.DirectionShort {
		t.Fatalf("expected short, got %s", strong.Direction)
	}
	if strong.Risk != domain.RiskLevel2 {
		t.Fatalf("expected risk 2 for high conviction, got %d", strong.Risk)
	}

	weak := BuildComposite(CompositeInput{
		LongThreshold:  0.35,
		ShortThreshold: -0.35,
		News:           CompositeComponent{Score: 0.2, Confidence: 0.4, Available: true},
	})
	if weak.Risk != domain.RiskLevel5 {
		t.Fatalf("expected risk 5 for low conviction, got %d", weak.Risk)
	}
}

func TestBuildCompositeDetailsIncludeValue(t *testing.T) {
	value := 72
	out := BuildComposite(CompositeInput{
		LongThreshold:  0.35,
		ShortThreshold: -0.35,
		FearGreedValue: &value,
		FearGreed:      CompositeComponent{Score: 0.44, Confidence: 0.6, Available: true},
	})
	if !strings.Contains(out.DetailsText, "fng_value=72") {
		t.Fatalf("details missing fear/greed value: %s", out.DetailsText)
	}
	if !strings.Contains(out.DetailsText, "news=na") {
		t.Fatalf("details should mark missing components na: %s", out.DetailsText)
	}
}
