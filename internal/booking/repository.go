package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DiiKhanh/booking-app-sub001/internal/db"
)

var (
	ErrNotFound = errors.New("booking not found")
	// ErrInvalidTransition means the booking was not in any of the expected
	// source states; the compare-and-set updated nothing.
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	CreateTx(ctx context.Context, tx pgx.Tx, b *Booking) error
	GetByID(ctx context.Context, bookingID string) (*Booking, error)
	GetStatus(ctx context.Context, bookingID string) (Status, error)
	UpdateStatus(ctx context.Context, bookingID string, to Status, reason string, from ...Status) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, bookingID string, to Status, reason string, from ...Status) error
	ListByUser(ctx context.Context, userID string) ([]Booking, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]Booking, error)
}

type PostgresRepository struct {
	pool db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, fn)
}

func (r *PostgresRepository) CreateTx(ctx context.Context, tx pgx.Tx, b *Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	b.UpdatedAt = b.CreatedAt

	_, err := tx.Exec(ctx, `
		INSERT INTO bookings (id, hold_id, user_id, room_id, hotel_id, check_in, check_out,
		                      guests, total_price_cents, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, b.ID, b.HoldID, b.UserID, b.RoomID, b.HotelID, b.CheckIn, b.CheckOut,
		b.Guests, b.TotalPriceCents, b.Currency, b.Status, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

const bookingColumns = `id, hold_id, user_id, room_id, hotel_id, check_in, check_out,
	guests, total_price_cents, currency, status, COALESCE(failure_reason, ''), created_at, updated_at`

func scanBooking(row pgx.Row, b *Booking) error {
	return row.Scan(&b.ID, &b.HoldID, &b.UserID, &b.RoomID, &b.HotelID, &b.CheckIn, &b.CheckOut,
		&b.Guests, &b.TotalPriceCents, &b.Currency, &b.Status, &b.FailureReason, &b.CreatedAt, &b.UpdatedAt)
}

func (r *PostgresRepository) GetByID(ctx context.Context, bookingID string) (*Booking, error) {
	var b Booking
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, bookingID)
	if err := scanBooking(row, &b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select booking: %w", err)
	}
	return &b, nil
}

// GetStatus reads the committed status directly; pollers hit this every few
// seconds and must see each transition, so there is no cache in front of it.
func (r *PostgresRepository) GetStatus(ctx context.Context, bookingID string) (Status, error) {
	var s Status
	err := r.pool.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, bookingID).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select booking status: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, bookingID string, to Status, reason string, from ...Status) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return r.UpdateStatusTx(ctx, tx, bookingID, to, reason, from...)
	})
}

// UpdateStatusTx advances the saga state with a compare-and-set on the
// current status. A zero row count means the booking raced to another state.
func (r *PostgresRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, bookingID string, to Status, reason string, from ...Status) error {
	for _, f := range from {
		if !CanTransition(f, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f, to)
		}
	}

	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status=$2, failure_reason=COALESCE($3, failure_reason), updated_at=now()
		WHERE id=$1 AND status = ANY($4)
	`, bookingID, to, reasonArg, statusStrings(from))
	if err != nil {
		if db.IsInvalidUUID(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current Status
		err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, bookingID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select booking status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
	}
	return nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return bookings, nil
}

// ListStale returns in-flight bookings that have not advanced since
// olderThan; recovery decides whether to resume or fail them.
func (r *PostgresRepository) ListStale(ctx context.Context, olderThan time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at
	`, statusStrings([]Status{StatusPending, StatusAwaitingPayment, StatusProcessing}), olderThan)
	if err != nil {
		return nil, fmt.Errorf("select stale bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, fmt.Errorf("scan stale booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return bookings, nil
}
