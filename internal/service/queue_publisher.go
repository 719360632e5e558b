package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/queue"
)

// EventPublisher announces recorded payments. Implementations must not block
// the request for long; failures are reported but never undo a payment.
type EventPublisher interface {
	PaymentRecorded(ctx context.Context, ev queue.PaymentRecordedEvent) error
}

// QueuePublisher publishes events to RabbitMQ. A connection is opened per
// publish, which keeps the publisher stateless at the cost of a dial.
type QueuePublisher struct {
	url    string
	logger *zap.Logger
}

func NewQueuePublisher(url string, logger *zap.Logger) *QueuePublisher {
	return &QueuePublisher{url: url, logger: logger}
}

// PaymentRecorded publishes ev to the durable payment.recorded queue as a
// persistent message.
func (p *QueuePublisher) PaymentRecorded(ctx context.Context, ev queue.PaymentRecordedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.PaymentRecordedQueue, // name
		true,                       // durable
		false,                      // autoDelete
		false,                      // exclusive
		false,                      // noWait
		nil,                        // args
	); err != nil {
		p.logger.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.PaymentRecordedQueue, false, false, pub); err != nil {
		p.logger.Warn("rabbitmq: publish failed", zap.Error(err))
		return err
	}
	return nil
}

// NopPublisher drops events. It is used when the queue is disabled.
type NopPublisher struct{}

func (NopPublisher) PaymentRecorded(context.Context, queue.PaymentRecordedEvent) error { return nil }
