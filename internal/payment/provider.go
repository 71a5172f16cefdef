package payment

import "context"

type Outcome string

const (
	// OutcomeSettled means the charge completed synchronously.
	OutcomeSettled Outcome = "settled"
	// OutcomeInitiated means the provider accepted the charge but settles
	// asynchronously; the result arrives on the payment event queues.
	OutcomeInitiated Outcome = "initiated"
	// OutcomeDeclined is a business decline. Never retried.
	OutcomeDeclined Outcome = "declined"
)

type Result struct {
	Outcome     Outcome
	ProviderRef string
	Reason      string
}

// Provider is the narrow payment collaborator interface. A returned error is
// a transport/infrastructure fault and is retryable; declines come back as a
// Result, not an error.
type Provider interface {
	Charge(ctx context.Context, bookingID string, amountCents int64, currency string) (Result, error)
}

// SandboxProvider settles every charge immediately. Used in development and
// load testing where no real payment rail is wired.
type SandboxProvider struct{}

func NewSandboxProvider() SandboxProvider {
	return SandboxProvider{}
}

func (SandboxProvider) Charge(ctx context.Context, bookingID string, amountCents int64, currency string) (Result, error) {
	return Result{Outcome: OutcomeSettled, ProviderRef: "sandbox-" + bookingID}, nil
}
