package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitNotifier struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

func NewRabbitNotifier(url, queue string, logger *slog.Logger) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &RabbitNotifier{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// Notify publishes the event and only logs on failure; delivery is not part
// of the job-processing contract.
func (n *RabbitNotifier) Notify(ctx context.Context, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		n.logger.Warn("event marshal failed", "type", e.Type, "error", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.ch.PublishWithContext(cctx,
		"",      // default exchange
		n.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		n.logger.Warn("event publish failed", "type", e.Type, "job_id", e.JobID, "error", err)
	}
}

func (n *RabbitNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
