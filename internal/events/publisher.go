package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
	"github.com/DiiKhanh/booking-app-sub001/internal/sequence"
)

const dateLayout = "2006-01-02"

// Publisher emits booking lifecycle events to the topic exchange. Each event
// carries a per-booking sequence so downstream consumers can deduplicate.
type Publisher struct {
	ch       *amqp.Channel
	seqRepo  *sequence.Repository
	producer string
}

type PublisherOptions struct {
	Producer string
}

func NewPublisher(conn *amqp.Connection, seqRepo *sequence.Repository, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	producer := opts.Producer
	if producer == "" {
		producer = bookingServiceName
	}

	return &Publisher{ch: ch, seqRepo: seqRepo, producer: producer}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) BookingConfirmed(ctx context.Context, b *booking.Booking) error {
	payload := BookingConfirmedPayload{
		BookingID:       b.ID,
		UserID:          b.UserID,
		RoomID:          b.RoomID,
		HotelID:         b.HotelID,
		CheckIn:         b.CheckIn.Format(dateLayout),
		CheckOut:        b.CheckOut.Format(dateLayout),
		TotalPriceCents: b.TotalPriceCents,
		Currency:        b.Currency,
		Timestamp:       time.Now().UTC(),
	}
	return p.publishEnveloped(ctx, EventTypeBookingConfirmed, BookingConfirmedRoutingKey, b.ID, payload)
}

func (p *Publisher) BookingFailed(ctx context.Context, b *booking.Booking, reason string) error {
	payload := BookingFailedPayload{
		BookingID: b.ID,
		UserID:    b.UserID,
		RoomID:    b.RoomID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	return p.publishEnveloped(ctx, EventTypeBookingFailed, BookingFailedRoutingKey, b.ID, payload)
}

func (p *Publisher) BookingCancelled(ctx context.Context, b *booking.Booking) error {
	payload := BookingCancelledPayload{
		BookingID: b.ID,
		UserID:    b.UserID,
		RoomID:    b.RoomID,
		Timestamp: time.Now().UTC(),
	}
	return p.publishEnveloped(ctx, EventTypeBookingCancelled, BookingCancelledRoutingKey, b.ID, payload)
}

func (p *Publisher) publishEnveloped(ctx context.Context, eventName, routingKey, partitionKey string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventName, err)
	}

	seq, err := p.seqRepo.NextSequence(ctx, partitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := EventEnvelope{
		EventName:    eventName,
		EventVersion: 1,
		EventID:      uuid.NewString(),
		Producer:     p.producer,
		PartitionKey: partitionKey,
		Sequence:     seq,
		OccurredAt:   time.Now().UTC(),
		Schema:       routingKey,
		Payload:      raw,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventName, err)
	}
	return p.publishJSON(ctx, routingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
