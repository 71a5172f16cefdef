package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DiiKhanh/booking-app-sub001/internal/db"
)

var ErrNotFound = errors.New("room not found")

type Repository interface {
	Get(ctx context.Context, roomID string) (Room, error)
	Create(ctx context.Context, r *Room) error
	SetActive(ctx context.Context, roomID string, active bool) error
}

type PostgresRepository struct {
	pool db.Pool
}

func NewPostgresRepository(pool db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, roomID string) (Room, error) {
	var rm Room
	row := r.pool.QueryRow(ctx, `
		SELECT id, hotel_id, name, units, max_guests, nightly_price_cents, currency, active, created_at
		FROM rooms WHERE id=$1
	`, roomID)
	err := row.Scan(&rm.ID, &rm.HotelID, &rm.Name, &rm.Units, &rm.MaxGuests,
		&rm.NightlyPriceCents, &rm.Currency, &rm.Active, &rm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsInvalidUUID(err) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("select room: %w", err)
	}
	return rm, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rm *Room) error {
	if rm.ID == "" {
		rm.ID = uuid.NewString()
	}
	if rm.Units <= 0 {
		rm.Units = 1
	}
	if rm.Currency == "" {
		rm.Currency = "USD"
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rooms (id, hotel_id, name, units, max_guests, nightly_price_cents, currency, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
	`, rm.ID, rm.HotelID, rm.Name, rm.Units, rm.MaxGuests, rm.NightlyPriceCents, rm.Currency)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	rm.Active = true
	return nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, roomID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE rooms SET active=$2 WHERE id=$1`, roomID, active)
	if err != nil {
		return fmt.Errorf("update room active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
