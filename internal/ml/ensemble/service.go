package ensemble

import "coinsight/internal/domain"

// Components are the inputs to the blended score. SentimentScore is the
// composite market-mood reading in [-1, 1]; Fresh reports whether a recent
// composite existed for the symbol. Model probabilities are up-probabilities
// in [0, 1].
type Components struct {
	SentimentScore float64
	SentimentFresh bool
	LogRegProb     float64
	BoostProb      float64
}

const (
	weightSentiment = 0.30
	weightLogReg    = 0.35
	weightBoost     = 0.35
)

type Service struct{}

func NewService() *Service { return &Service{} }

// Score blends the components into [-1, 1]. A stale sentiment reading drops
// out and the remaining weights are renormalized, so the ensemble degrades
// to a pure model blend rather than averaging in a neutral zero.
func (s *Service) Score(c Components) float64 {
	logRegScore := 2*c.LogRegProb - 1
	boostScore := 2*c.BoostProb - 1

	total := weightLogReg + weightBoost
	score := weightLogReg*logRegScore + weightBoost*boostScore
	if c.SentimentFresh {
		score += weightSentiment * c.SentimentScore
		total += weightSentiment
	}
	return score / total
}

func Direction(score float64) domain.SignalDirection {
	if score > 0.15 {
		return domain.DirectionLong
	}
	if score < -0.15 {
		return domain.DirectionShort
	}
	return domain.DirectionHold
}
