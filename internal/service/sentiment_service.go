package service

import (
	"context"
	"time"

	"coinsight/internal/domain"
	"coinsight/internal/sentiment"

	"go.opentelemetry.io/otel/trace"
)

// SentimentService is the thin orchestration wrapper the jobs and handlers
// call into.
type SentimentService struct {
	tracer trace.Tracer
	svc    *sentiment.Service
}

func NewSentimentService(tracer trace.Tracer, svc *sentiment.Service) *SentimentService {
	return &SentimentService{tracer: tracer, svc: svc}
}

func (s *SentimentService) RunSentiment(ctx context.Context) (domain.SentimentRunResult, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.run")
	defer span.End()
	if s == nil || s.svc == nil {
		return domain.SentimentRunResult{}, nil
	}
	return s.svc.RunCycle(ctx, time.Now().UTC())
}
