package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/paymentintent"
)

// StripeProvider charges through Stripe PaymentIntents. Settlement is
// asynchronous: the webhook gateway forwards the outcome onto the payment
// event queues, so a successful Charge only reports OutcomeInitiated.
type StripeProvider struct{}

func NewStripeProvider(secretKey string) StripeProvider {
	stripe.Key = secretKey
	return StripeProvider{}
}

func (StripeProvider) Charge(ctx context.Context, bookingID string, amountCents int64, currency string) (Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	// One intent per booking regardless of retries.
	params.SetIdempotencyKey(bookingID)

	pi, err := paymentintent.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Type == stripe.ErrorTypeCard {
			return Result{Outcome: OutcomeDeclined, Reason: string(stripeErr.Code)}, nil
		}
		return Result{}, fmt.Errorf("create payment intent: %w", err)
	}

	return Result{Outcome: OutcomeInitiated, ProviderRef: pi.ID}, nil
}
