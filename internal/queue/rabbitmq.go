package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQDispatcher publishes and consumes document jobs over AMQP.
type RabbitMQDispatcher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	log       *zap.Logger
}

func NewRabbitMQDispatcher(url, queueName string, log *zap.Logger) (*RabbitMQDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // auto-deleted
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &RabbitMQDispatcher{
		conn:      conn,
		channel:   ch,
		queueName: queueName,
		log:       log,
	}, nil
}

func (d *RabbitMQDispatcher) Dispatch(ctx context.Context, job DocumentJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return d.channel.PublishWithContext(ctx,
		"",          // exchange
		d.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    job.DocumentID.String(),
			Body:         body,
		},
	)
}

// Consume handles jobs with manual acknowledgement. Failed jobs are
// nacked without requeue so a dead-letter policy can pick them up.
func (d *RabbitMQDispatcher) Consume(ctx context.Context, handler Handler) error {
	if err := d.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := d.channel.Consume(
		d.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}

			var job DocumentJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				d.log.Error("failed to decode document job",
					zap.String("message_id", msg.MessageId),
					zap.Error(err))
				msg.Nack(false, false)
				continue
			}

			if err := handler(ctx, job); err != nil {
				d.log.Error("document job failed",
					zap.String("document_id", job.DocumentID.String()),
					zap.Error(err))
				msg.Nack(false, false)
				continue
			}

			if err := msg.Ack(false); err != nil {
				d.log.Error("failed to ack message",
					zap.String("message_id", msg.MessageId),
					zap.Error(err))
			}
		}
	}
}

func (d *RabbitMQDispatcher) Close() error {
	if err := d.channel.Close(); err != nil {
		d.conn.Close()
		return err
	}
	return d.conn.Close()
}
