package notifyrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventCreated   = "booking.created"
	EventHeld      = "booking.held"
	EventCancelled = "booking.cancelled"
)

type Event struct {
	Type       string              `json:"type"`
	BookingID  string              `json:"booking_id"`
	VillaID    string              `json:"villa_id"`
	StartDate  string              `json:"start_date"`
	EndDate    string              `json:"end_date"`
	Status     model.BookingStatus `json:"status"`
	HeldUntil  *time.Time          `json:"held_until,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

func NewEvent(typ string, b *model.Booking, at time.Time) Event {
	return Event{
		Type:       typ,
		BookingID:  b.ID,
		VillaID:    b.ResourceID,
		StartDate:  model.FormatDate(b.StartDate),
		EndDate:    model.FormatDate(b.EndDate),
		Status:     b.Status,
		HeldUntil:  b.HeldUntil,
		OccurredAt: at,
	}
}

// Notifier publishes booking events after they are committed.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.BookingID + ":" + ev.Type,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         b,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops every event; used when RABBIT_URL is empty.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
