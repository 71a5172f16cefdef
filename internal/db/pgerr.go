package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error classification shared by the repositories.

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// IsTransient reports whether err is a storage fault worth retrying:
// serialization failures, deadlocks, lock timeouts, and dropped connections.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "08000", "08003", "08006", "57P03":
			return true
		}
	}
	return false
}
