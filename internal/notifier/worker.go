package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/ledger"
)

// Worker drains a Queue into a Sender.
type Worker struct {
	queue      Queue
	sender     Sender
	maxRetries int
	backoffs   []time.Duration
	records    Records
}

// Records looks up the request a notification is about.
type Records interface {
	Get(id string) (ledger.Record, error)
}

type WorkerOption func(*Worker)

// WithBackoffs overrides the delays between delivery attempts.
func WithBackoffs(backoffs ...time.Duration) WorkerOption {
	return func(w *Worker) {
		w.backoffs = backoffs
	}
}

// WithRecords makes the worker drop notifications for requests the ledger
// doesn't know, such as ones left in a durable queue by a previous process.
func WithRecords(records Records) WorkerOption {
	return func(w *Worker) {
		w.records = records
	}
}

func NewWorker(queue Queue, sender Sender, maxRetries int, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:      queue,
		sender:     sender,
		maxRetries: maxRetries,
		backoffs:   defaultBackoffs,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	log.Info().Int("max_retries", w.maxRetries).Msg("notification worker started")
	defer log.Info().Msg("notification worker stopped")
	return w.queue.Run(ctx, w.deliver)
}

func (w *Worker) deliver(ctx context.Context, n Notification) error {
	if w.records != nil {
		if _, err := w.records.Get(n.ID); errors.Is(err, ledger.ErrNotFound) {
			log.Warn().Str("id", n.ID).Msg("skipping notification for unknown request")
			return nil
		}
	}

	start := time.Now()
	err := RetryWithBackoff(ctx, func() error {
		return w.sender.Send(ctx, n)
	}, w.maxRetries, w.backoffs)
	if err != nil {
		log.Error().Err(err).Str("id", n.ID).Msg("failed to notify reviewers")
		return err
	}
	log.Info().Str("id", n.ID).Dur("elapsed", time.Since(start)).Msg("review request delivered")
	return nil
}
