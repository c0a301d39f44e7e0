package notifier

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	mu     sync.RWMutex
	ch     chan Notification
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Notification, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run hands queued notifications to handle one at a time. After Close it
// drains what is left and returns; cancelling ctx stops it immediately.
func (q *MemoryQueue) Run(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			if left := len(q.ch); left > 0 {
				log.Warn().Int("dropped", left).Msg("notification queue stopped with undelivered notifications")
			}
			return nil
		case n, ok := <-q.ch:
			if !ok {
				return nil
			}
			_ = handle(ctx, n)
		}
	}
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
