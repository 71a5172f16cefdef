package booking

type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusProcessing      Status = "processing"
	StatusConfirmed       Status = "confirmed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
	StatusCompleted       Status = "completed"
)

// transitions is the full saga state machine. Every status update goes
// through a compare-and-set against this table so pollers never observe
// states out of order.
var transitions = map[Status][]Status{
	StatusPending:         {StatusAwaitingPayment, StatusFailed, StatusCancelled},
	StatusAwaitingPayment: {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing:      {StatusConfirmed, StatusFailed},
	StatusConfirmed:       {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal saga step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further saga-driven transition is allowed.
// Confirmed is terminal for the payment saga; completion is an
// administrative follow-up after the stay.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// InFlight reports whether the saga still owns the booking.
func (s Status) InFlight() bool {
	switch s {
	case StatusPending, StatusAwaitingPayment, StatusProcessing:
		return true
	}
	return false
}
