package rabbitmq

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"admin-console/internal/telemetry"
)

// Publisher publishes moderation audit events. When no broker is configured
// the console still runs; audit entries fall through to the process log.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher connects to RabbitMQ and declares the audit exchange. Any
// failure degrades to the noop publisher instead of refusing to start.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		log.Printf("audit publisher: no amqp url, logging locally")
		return logPublisher{}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Printf("audit publisher: dial failed, logging locally: %v", err)
		return logPublisher{}
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Printf("audit publisher: channel failed, logging locally: %v", err)
		_ = conn.Close()
		return logPublisher{}
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Printf("audit publisher: exchange declare failed, logging locally: %v", err)
		_ = ch.Close()
		_ = conn.Close()
		return logPublisher{}
	}

	log.Printf("audit publisher: connected exchange=%s", exchange)
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		log.Printf("audit publisher: publish failed: %v", err)
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// logPublisher writes audit entries to the process log so local development
// keeps an audit trail without a broker.
type logPublisher struct{}

func (logPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	if env, ok := asAuditEnvelope(event); ok {
		log.Printf("audit: routing_key=%s action=%q level=%s request_id=%s", routingKey, env.Payload.Action, env.Payload.Level, env.RequestID)
		return nil
	}
	log.Printf("audit: routing_key=%s", routingKey)
	return nil
}

func (logPublisher) Close() error { return nil }

func asAuditEnvelope(event any) (telemetry.AuditEnvelope, bool) {
	switch env := event.(type) {
	case telemetry.AuditEnvelope:
		return env, true
	case *telemetry.AuditEnvelope:
		return *env, true
	}
	return telemetry.AuditEnvelope{}, false
}

// PublisherMode reports how audit events are being delivered, for the
// startup log.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case logPublisher:
		return "log"
	default:
		return "unknown"
	}
}
