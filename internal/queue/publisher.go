package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends audit events to a durable RabbitMQ queue.  A connection
// is dialled per message; audit volume is low and this keeps the publisher
// free of reconnect state.
type Publisher struct {
	url   string
	queue string
}

// NewPublisher returns a Publisher for the broker at url.  An empty queue
// name selects DefaultQueueName.
func NewPublisher(url, queueName string) *Publisher {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Publisher{url: url, queue: queueName}
}

// PublishAudit implements service.AuditPublisher.  Errors are logged and
// returned so the caller may ignore them.
func (p *Publisher) PublishAudit(ctx context.Context, eventType string, data json.RawMessage, at time.Time) error {
	msg := ReservationEventMessage{
		MessageID:  uuid.NewString(),
		EventType:  eventType,
		Data:       data,
		OccurredAt: at.UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         eventType,
		Timestamp:    at.UTC(),
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
