// ===========================================
// Package repository - Data Access Layer
// ===========================================
// Repositories are the only code that speaks SQL. Each one wraps the
// shared pgx pool and maps rows to models.
//
// Conventions:
// - Every method takes context.Context first
// - Queries are always parameterized ($1, $2, ...)
// - "No rows" becomes ErrNotFound, unique violations ErrAlreadyExists
// - Any other driver error is wrapped with fmt.Errorf("...: %w")
// ===========================================

package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors returned by repository methods.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// isDuplicateKeyError reports whether err is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
