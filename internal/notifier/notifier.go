package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrQueueClosed = errors.New("notification queue closed")
	ErrQueueFull   = errors.New("notification queue full")
)

// Notification asks reviewers to judge one uploaded photo.
type Notification struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Image       []byte `json:"image,omitempty"`
	ImageURL    string `json:"image_url"`
	Score       string `json:"score,omitempty"`
	Percent     string `json:"percent,omitempty"`
	Feedback    string `json:"feedback,omitempty"`
}

// Sender delivers a notification to the chat platform.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Handler processes one dequeued notification.
type Handler func(ctx context.Context, n Notification) error

// Queue decouples upload handling from delivery. Enqueue never waits on
// delivery; Run consumes until the queue is closed or ctx is done.
type Queue interface {
	Enqueue(ctx context.Context, n Notification) error
	Run(ctx context.Context, handle Handler) error
	Close() error
}

func EncodeNotification(n Notification) ([]byte, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return body, nil
}

func DecodeNotification(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, fmt.Errorf("failed to decode notification: %w", err)
	}
	if n.ID == "" {
		return Notification{}, fmt.Errorf("failed to decode notification: missing id")
	}
	return n, nil
}

var defaultBackoffs = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// RetryWithBackoff calls fn up to maxRetries times, sleeping between
// attempts. It stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int, backoffs []time.Duration) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if i == maxRetries-1 {
			break
		}
		if i < len(backoffs) && backoffs[i] > 0 {
			timer := time.NewTimer(backoffs[i])
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted after %d attempts: %w", i+1, ctx.Err())
			case <-timer.C:
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
