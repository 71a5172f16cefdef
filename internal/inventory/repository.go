package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DiiKhanh/booking-app-sub001/internal/db"
)

var (
	// ErrConflict means another hold or booking already owns at least one
	// night in the requested range. Final for this attempt; never retried.
	ErrConflict     = errors.New("inventory conflict")
	ErrHoldNotFound = errors.New("hold not found")
	// ErrHoldExpired means the hold raced past its TTL before conversion.
	ErrHoldExpired  = errors.New("hold expired")
	ErrRoomNotFound = errors.New("room not found")
)

type Repository interface {
	AcquireHold(ctx context.Context, hold Hold, now time.Time) error
	ReleaseHold(ctx context.Context, holdID string) error
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	Availability(ctx context.Context, roomID string, from, to time.Time) ([]DayAvailability, error)
}

// TransactionalRepository exposes tx-scoped variants so callers can compose
// ledger mutations with booking-state changes in a single transaction.
type TransactionalRepository interface {
	Repository
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	ConvertHoldTx(ctx context.Context, tx pgx.Tx, holdID string, now time.Time) error
	ReleaseHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error
	FinalizeHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error
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

// executor is the subset of pgx methods shared by db.Pool and pgx.Tx.
type executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// AcquireHold performs the atomic check-and-set over every night in the hold's
// range. Row locks are taken per night in ascending day order; whichever
// transaction locks the first night wins, losers observe the decremented count
// and fail fast with ErrConflict. Expired holds on the room are reclaimed
// inside the same transaction so freed nights are sellable immediately.
func (r *PostgresRepository) AcquireHold(ctx context.Context, hold Hold, now time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Losers queue on the winner's first-night row lock; cap that wait so
		// they surface a transient error instead of stalling the request.
		if _, err := tx.Exec(ctx, `SET LOCAL lock_timeout = '3s'`); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}

		var units int
		err := tx.QueryRow(ctx, `SELECT units FROM rooms WHERE id=$1`, hold.RoomID).Scan(&units)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("select room units: %w", err)
		}

		if err := reclaimExpired(ctx, tx, hold.RoomID, now); err != nil {
			return err
		}

		// Materialize missing ledger rows lazily from the room's unit count.
		_, err = tx.Exec(ctx, `
			INSERT INTO room_inventory (room_id, day, available)
			SELECT $1, d::date, $4
			FROM generate_series($2::date, $3::date - 1, '1 day') AS d
			ON CONFLICT (room_id, day) DO NOTHING
		`, hold.RoomID, hold.CheckIn, hold.CheckOut, units)
		if err != nil {
			return fmt.Errorf("seed inventory rows: %w", err)
		}

		for _, day := range hold.Nights() {
			var available int
			err := tx.QueryRow(ctx, `
				SELECT available FROM room_inventory
				WHERE room_id=$1 AND day=$2
				FOR UPDATE
			`, hold.RoomID, day).Scan(&available)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrRoomNotFound
				}
				return fmt.Errorf("lock inventory row: %w", err)
			}
			if available < 1 {
				return ErrConflict
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE room_inventory
			SET available = available - 1, version = version + 1, updated_at = now()
			WHERE room_id=$1 AND day >= $2 AND day < $3
		`, hold.RoomID, hold.CheckIn, hold.CheckOut)
		if err != nil {
			return fmt.Errorf("decrement inventory: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO booking_holds (id, room_id, user_id, check_in, check_out, status, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, hold.ID, hold.RoomID, hold.UserID, hold.CheckIn, hold.CheckOut, HoldStatusActive, hold.ExpiresAt, hold.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert hold: %w", err)
		}
		return nil
	})
}

// ReleaseHold puts the hold's nights back into the ledger. Idempotent: a
// second release (or releasing an already expired hold) is a no-op.
func (r *PostgresRepository) ReleaseHold(ctx context.Context, holdID string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return r.ReleaseHoldTx(ctx, tx, holdID)
	})
}

func (r *PostgresRepository) ReleaseHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error {
	var roomID string
	var checkIn, checkOut time.Time
	err := tx.QueryRow(ctx, `
		UPDATE booking_holds SET status=$2
		WHERE id=$1 AND status = ANY($3)
		RETURNING room_id, check_in, check_out
	`, holdID, HoldStatusReleased, []string{string(HoldStatusActive), string(HoldStatusConverted)}).
		Scan(&roomID, &checkIn, &checkOut)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return releaseNoop(ctx, tx, holdID)
		}
		if db.IsInvalidUUID(err) {
			return ErrHoldNotFound
		}
		return fmt.Errorf("release hold: %w", err)
	}
	return restoreRange(ctx, tx, roomID, checkIn, checkOut)
}

// releaseNoop distinguishes "already terminal" (fine) from "no such hold".
func releaseNoop(ctx context.Context, q executor, holdID string) error {
	var status HoldStatus
	err := q.QueryRow(ctx, `SELECT status FROM booking_holds WHERE id=$1`, holdID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
			return ErrHoldNotFound
		}
		return fmt.Errorf("select hold status: %w", err)
	}
	return nil
}

// ConvertHoldTx flips an active, unexpired hold to converted so a pending
// booking can be created on top of it in the same transaction.
func (r *PostgresRepository) ConvertHoldTx(ctx context.Context, tx pgx.Tx, holdID string, now time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE booking_holds SET status=$2
		WHERE id=$1 AND status=$3 AND expires_at > $4
	`, holdID, HoldStatusConverted, HoldStatusActive, now)
	if err != nil {
		if db.IsInvalidUUID(err) {
			return ErrHoldNotFound
		}
		return fmt.Errorf("convert hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status HoldStatus
		err := tx.QueryRow(ctx, `SELECT status FROM booking_holds WHERE id=$1`, holdID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
				return ErrHoldNotFound
			}
			return fmt.Errorf("select hold status: %w", err)
		}
		return ErrHoldExpired
	}
	return nil
}

// FinalizeHoldTx marks a converted hold as permanently consumed once the
// backing booking confirms. Consumed holds are never released back.
func (r *PostgresRepository) FinalizeHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE booking_holds SET status=$2 WHERE id=$1 AND status=$3
	`, holdID, HoldStatusConsumed, HoldStatusConverted)
	if err != nil {
		return fmt.Errorf("finalize hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status HoldStatus
		err := tx.QueryRow(ctx, `SELECT status FROM booking_holds WHERE id=$1`, holdID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
				return ErrHoldNotFound
			}
			return fmt.Errorf("select hold status: %w", err)
		}
		if status == HoldStatusConsumed {
			return nil
		}
		return fmt.Errorf("finalize hold %s: unexpected status %s", holdID, status)
	}
	return nil
}

// ExpireDue marks every overdue active hold expired and restores its nights.
// Called by the background sweep so abandoned flows never leak inventory.
func (r *PostgresRepository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	var expired int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		n, err := reclaim(ctx, tx, "", now)
		expired = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

func reclaimExpired(ctx context.Context, tx pgx.Tx, roomID string, now time.Time) error {
	_, err := reclaim(ctx, tx, roomID, now)
	return err
}

func reclaim(ctx context.Context, tx pgx.Tx, roomID string, now time.Time) (int, error) {
	query := `
		UPDATE booking_holds SET status=$1
		WHERE status=$2 AND expires_at <= $3
		RETURNING room_id, check_in, check_out`
	args := []any{HoldStatusExpired, HoldStatusActive, now}
	if roomID != "" {
		query = `
		UPDATE booking_holds SET status=$1
		WHERE status=$2 AND expires_at <= $3 AND room_id=$4
		RETURNING room_id, check_in, check_out`
		args = append(args, roomID)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("expire holds: %w", err)
	}

	type span struct {
		roomID            string
		checkIn, checkOut time.Time
	}
	var spans []span
	for rows.Next() {
		var s span
		if err := rows.Scan(&s.roomID, &s.checkIn, &s.checkOut); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan expired hold: %w", err)
		}
		spans = append(spans, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("expired holds rows: %w", err)
	}

	for _, s := range spans {
		if err := restoreRange(ctx, tx, s.roomID, s.checkIn, s.checkOut); err != nil {
			return 0, err
		}
	}
	return len(spans), nil
}

func restoreRange(ctx context.Context, tx pgx.Tx, roomID string, checkIn, checkOut time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE room_inventory
		SET available = available + 1, version = version + 1, updated_at = now()
		WHERE room_id=$1 AND day >= $2 AND day < $3
	`, roomID, checkIn, checkOut)
	if err != nil {
		return fmt.Errorf("restore inventory: %w", err)
	}
	return nil
}

// Availability reports per-night availability; nights with no ledger row yet
// fall back to the room's unit count.
func (r *PostgresRepository) Availability(ctx context.Context, roomID string, from, to time.Time) ([]DayAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d::date, COALESCE(ri.available, r.units)
		FROM rooms r
		CROSS JOIN generate_series($2::date, $3::date - 1, '1 day') AS d
		LEFT JOIN room_inventory ri ON ri.room_id = r.id AND ri.day = d::date
		WHERE r.id = $1
		ORDER BY d
	`, roomID, from, to)
	if err != nil {
		if db.IsInvalidUUID(err) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("select availability: %w", err)
	}
	defer rows.Close()

	var days []DayAvailability
	for rows.Next() {
		var d DayAvailability
		if err := rows.Scan(&d.Day, &d.Available); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability rows: %w", err)
	}
	if len(days) == 0 {
		return nil, ErrRoomNotFound
	}
	return days, nil
}
