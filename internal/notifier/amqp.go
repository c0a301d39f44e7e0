package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// AMQPQueue publishes notifications to a durable RabbitMQ queue and consumes
// them from the same queue, so pending deliveries survive a broker restart.
// Records live only in this process, so messages left over from an earlier
// process are dropped by the worker (see WithRecords).
type AMQPQueue struct {
	conn    *amqp.Connection
	pubCh   *amqp.Channel
	subCh   *amqp.Channel
	queue   string
	pubMu   sync.Mutex
	closeMu sync.RWMutex
	closed  bool
}

func DialAMQP(url, queue string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	subCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open consume channel: %w", err)
	}

	if _, err := pubCh.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := subCh.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	return &AMQPQueue{
		conn:  conn,
		pubCh: pubCh,
		subCh: subCh,
		queue: queue,
	}, nil
}

func (q *AMQPQueue) Enqueue(ctx context.Context, n Notification) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	body, err := EncodeNotification(n)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err = q.pubCh.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", n.ID, err)
	}
	return nil
}

// Run acks a delivery once handle succeeds. Undecodable messages and
// notifications whose delivery failed are rejected without requeue, unless
// the failure came from ctx being done.
func (q *AMQPQueue) Run(ctx context.Context, handle Handler) error {
	deliveries, err := q.subCh.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", q.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			n, err := DecodeNotification(d.Body)
			if err != nil {
				log.Error().Err(err).Str("message_id", d.MessageId).Msg("dropping undecodable notification")
				_ = d.Nack(false, false)
				continue
			}
			if err := handle(ctx, n); err != nil {
				// Interrupted by shutdown: hand it back instead of dropping it.
				_ = d.Nack(false, ctx.Err() != nil)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (q *AMQPQueue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	return q.conn.Close()
}
