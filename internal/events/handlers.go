package events

import (
	"context"
	"fmt"
)

// PaymentApplier settles or fails a booking from an asynchronous payment
// event. Implemented by the saga orchestrator.
type PaymentApplier interface {
	HandlePaymentSucceeded(ctx context.Context, bookingID string, seq int64) error
	HandlePaymentFailed(ctx context.Context, bookingID, reason string, seq int64) error
}

// PaymentSucceededHandler returns a handler for payment.succeeded.v1 events.
func PaymentSucceededHandler(applier PaymentApplier, consumeEnveloped bool) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		msg, err := parsePaymentSucceeded(body, consumeEnveloped)
		if err != nil {
			return err
		}
		if msg.Payload.BookingID == "" {
			return fmt.Errorf("missing bookingId")
		}

		var seq int64
		if msg.Envelope != nil {
			seq = msg.Envelope.Sequence
		}
		return applier.HandlePaymentSucceeded(ctx, msg.Payload.BookingID, seq)
	}
}

// PaymentFailedHandler returns a handler for payment.failed.v1 events.
func PaymentFailedHandler(applier PaymentApplier, consumeEnveloped bool) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		msg, err := parsePaymentFailed(body, consumeEnveloped)
		if err != nil {
			return err
		}
		if msg.Payload.BookingID == "" {
			return fmt.Errorf("missing bookingId")
		}

		var seq int64
		if msg.Envelope != nil {
			seq = msg.Envelope.Sequence
		}
		return applier.HandlePaymentFailed(ctx, msg.Payload.BookingID, msg.Payload.Reason, seq)
	}
}
