package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"coinsight/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func TestSentimentJobRunsAtLeastOnce(t *testing.T) {
	var calls int32
	runner := &sentimentRunnerTestStub{calls: &calls}
	job := NewSentimentJob(trace.NewNoopTracerProvider().Tracer("test"), runner, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected at least one sentiment run")
	}
}

type sentimentRunnerTestStub struct {
	calls *int32
}

func (s *sentimentRunnerTestStub) RunSentiment(ctx context.Context) (domain.SentimentRunResult, error) {
	atomic.AddInt32(s.calls, 1)
	return domain.SentimentRunResult{}, nil
}
