package job

import (
	"context"
	"log"
	"time"

	"coinsight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type SentimentRunner interface {
	RunSentiment(ctx context.Context) (domain.SentimentRunResult, error)
}

type SentimentJob struct {
	tracer       trace.Tracer
	runner       SentimentRunner
	pollInterval time.Duration
}

func NewSentimentJob(tracer trace.Tracer, runner SentimentRunner, pollInterval time.Duration) *SentimentJob {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Minute
	}
	return &SentimentJob{tracer: tracer, runner: runner, pollInterval: pollInterval}
}

func (j *SentimentJob) Start(ctx context.Context) {
	if j.runner == nil {
		log.Println("Sentiment job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SentimentJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "sentiment-job.run-once")
	defer span.End()

	result, err := j.runner.RunSentiment(ctx)
	if err != nil {
		log.Printf("Sentiment cycle error: %v", err)
		return
	}
	if result.ItemsIngested > 0 || result.SignalsWritten > 0 {
		log.Printf(
			"Sentiment cycle complete ingested=%d scored=%d attention=%d composites=%d signals=%d warnings=%d",
			result.ItemsIngested,
			result.ItemsScored,
			result.AttentionSnapshots,
			result.CompositesWritten,
			result.SignalsWritten,
			len(result.Errors),
		)
	}
}
