package database

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors surfaced by the repositories. Callers branch on these
// with errors.Is; everything unexpected collapses to ErrInternal and is
// logged here with full detail.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrNoStorage     = errors.New("referenced storage does not exist")
	ErrInternal      = errors.New("internal database error")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify maps a raw pgx error onto one of the sentinel kinds.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgForeignKeyViolation:
			return ErrNoStorage
		}
	}

	slog.Error("database error", "error", err)
	return ErrInternal
}

// isUniqueViolation reports whether err is a unique-constraint conflict,
// before classification.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
