package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to RabbitMQ.  Each publish opens its own
// connection; failures are logged and returned so callers can ignore
// them without failing the request.
type Publisher struct {
	url    string
	queue  string
	logger echo.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger echo.Logger) *Publisher {
	return &Publisher{url: url, queue: MailQueue, logger: logger}
}

// Publish delivers ev to the mail queue as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev RentRequestEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Errorf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Errorf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Errorf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Errorf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Errorf("rabbitmq: publish %s failed: %v", ev.Type, err)
		return err
	}
	return nil
}
