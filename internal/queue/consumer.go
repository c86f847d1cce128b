package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the mail queue and appends every notification to
// mail.log under Dir.
type Consumer struct {
	URL    string
	Queue  string
	Dir    string
	Logger echo.Logger
}

// NewConsumer returns a Consumer writing to logs/mail.log.
func NewConsumer(url string, logger echo.Logger) *Consumer {
	return &Consumer{URL: url, Queue: MailQueue, Dir: "logs", Logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warnf("mail-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warnf("mail-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Logger.Warnf("mail-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.Logger.Errorf("mail-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // drop; requeueing a bad payload loops forever
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	var ev RentRequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.Dir, "mail.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mail log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(RenderMail(ev)); err != nil {
		return fmt.Errorf("write mail log: %w", err)
	}
	return nil
}

// RenderMail formats ev as a plain-text email addressed by user id.
func RenderMail(ev RentRequestEvent) string {
	to, subject := ev.LenderID, "New rent request"
	switch ev.Type {
	case EventApproved:
		to, subject = ev.BorrowerID, "Your rent request was approved"
	case EventCancelled:
		to, subject = ev.BorrowerID, "Rent request cancelled"
	case EventCompleted:
		to, subject = ev.BorrowerID, "Rental completed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] To: user:%d\n", ev.OccurredAt, to)
	fmt.Fprintf(&b, "Subject: %s (#%d)\n\n", subject, ev.RentRequestID)
	fmt.Fprintf(&b, "Listing %d, %s to %s, %d cents. Status: %s.\n",
		ev.ListingID, ev.PickupTime, ev.DropOffTime, ev.PriceCents, ev.Status)
	if ev.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", ev.Reason)
	}
	b.WriteString("--\n")
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
