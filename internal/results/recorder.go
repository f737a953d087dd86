package results

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ent0n29/voicesurvey/internal/observability"
	"github.com/ent0n29/voicesurvey/internal/reliability"
)

// Recorder writes submissions in the background. Writes are best effort:
// failures are retried with backoff, then logged and dropped.
type Recorder struct {
	store   Store
	metrics *observability.Metrics
	policy  reliability.Policy
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecorder(store Store, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		store:   store,
		metrics: metrics,
		policy: reliability.Policy{
			Attempts: 4,
			Base:     200 * time.Millisecond,
			Cap:      2 * time.Second,
			Retryable: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
		},
		timeout: 10 * time.Second,
	}
}

// Record schedules sub for persistence and returns immediately.
func (r *Recorder) Record(sub Submission) {
	if r == nil || r.store == nil {
		return
	}
	sub = prepare(sub)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		err := reliability.Retry(ctx, r.policy, func(ctx context.Context) error {
			return r.store.Save(ctx, sub)
		})
		if err != nil {
			r.metrics.ObserveSubmissionWrite("error")
			log.Printf("submission save failed session=%s id=%s: %v", sub.SessionID, sub.ID, err)
			return
		}
		r.metrics.ObserveSubmissionWrite("ok")
	}()
}

// Wait blocks until every scheduled write has finished.
func (r *Recorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
