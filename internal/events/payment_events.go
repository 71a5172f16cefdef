package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventTypePaymentSucceeded = "PaymentSucceeded"
	EventTypePaymentFailed    = "PaymentFailed"
)

// LegacyPaymentSucceeded is the unenveloped contract still emitted by older
// payment workers.
type LegacyPaymentSucceeded struct {
	EventType   string    `json:"eventType"`
	BookingID   string    `json:"bookingId"`
	UserID      string    `json:"userId"`
	ProviderRef string    `json:"providerRef,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type LegacyPaymentFailed struct {
	EventType string    `json:"eventType"`
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentSucceededPayload is the enveloped v1 payload.
type PaymentSucceededPayload struct {
	BookingID   string    `json:"bookingId"`
	UserID      string    `json:"userId"`
	ProviderRef string    `json:"providerRef,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type PaymentFailedPayload struct {
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type parsedPaymentSucceeded struct {
	Payload  PaymentSucceededPayload
	Envelope *EventEnvelope
}

type parsedPaymentFailed struct {
	Payload  PaymentFailedPayload
	Envelope *EventEnvelope
}

func parsePaymentSucceeded(body []byte, enveloped bool) (parsedPaymentSucceeded, error) {
	if !enveloped {
		var legacy LegacyPaymentSucceeded
		if err := json.Unmarshal(body, &legacy); err != nil {
			return parsedPaymentSucceeded{}, fmt.Errorf("unmarshal PaymentSucceeded: %w", err)
		}
		return parsedPaymentSucceeded{Payload: PaymentSucceededPayload{
			BookingID:   legacy.BookingID,
			UserID:      legacy.UserID,
			ProviderRef: legacy.ProviderRef,
			Timestamp:   legacy.Timestamp,
		}}, nil
	}

	env, err := parseEnvelope(body)
	if err != nil {
		return parsedPaymentSucceeded{}, fmt.Errorf("unmarshal PaymentSucceeded envelope: %w", err)
	}
	if err := env.Validate(EventTypePaymentSucceeded, 1); err != nil {
		return parsedPaymentSucceeded{}, err
	}
	var payload PaymentSucceededPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return parsedPaymentSucceeded{}, fmt.Errorf("unmarshal PaymentSucceeded payload: %w", err)
	}
	return parsedPaymentSucceeded{Payload: payload, Envelope: &env}, nil
}

func parsePaymentFailed(body []byte, enveloped bool) (parsedPaymentFailed, error) {
	if !enveloped {
		var legacy LegacyPaymentFailed
		if err := json.Unmarshal(body, &legacy); err != nil {
			return parsedPaymentFailed{}, fmt.Errorf("unmarshal PaymentFailed: %w", err)
		}
		return parsedPaymentFailed{Payload: PaymentFailedPayload{
			BookingID: legacy.BookingID,
			UserID:    legacy.UserID,
			Reason:    legacy.Reason,
			Timestamp: legacy.Timestamp,
		}}, nil
	}

	env, err := parseEnvelope(body)
	if err != nil {
		return parsedPaymentFailed{}, fmt.Errorf("unmarshal PaymentFailed envelope: %w", err)
	}
	if err := env.Validate(EventTypePaymentFailed, 1); err != nil {
		return parsedPaymentFailed{}, err
	}
	var payload PaymentFailedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return parsedPaymentFailed{}, fmt.Errorf("unmarshal PaymentFailed payload: %w", err)
	}
	return parsedPaymentFailed{Payload: payload, Envelope: &env}, nil
}
