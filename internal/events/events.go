// Package events publishes domain events for downstream consumers.
// Delivery is best effort: publishing never blocks or fails a request.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	UserRegistered  = "user.registered"
	UserVerified    = "user.verified"
	MessageReceived = "message.received"
	MessageDeleted  = "message.deleted"
)

// Event is the wire payload. It never carries message content or anything
// about the sender.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	MessageID  string    `json:"messageId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// NATSPublisher publishes each event as JSON on <prefix>.<type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{nats.Name("shadowspeak")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) Subject(ev Event) string {
	if p.prefix == "" {
		return ev.Type
	}
	return p.prefix + "." + ev.Type
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if p == nil || p.conn == nil {
		return errors.New("nil publisher")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(ev), data)
}

func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// LogPublisher writes events to the log; used when NATS_URL is empty.
type LogPublisher struct {
	Log *slog.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	p.Log.Debug("event", "type", ev.Type, "user_id", ev.UserID, "message_id", ev.MessageID)
	return nil
}

func (LogPublisher) Close() {}
