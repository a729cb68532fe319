// ===========================================
// Package service - Business Logic Layer
// ===========================================
// Services hold the redirect, link-creation and analytics logic.
// They depend on the small store interfaces in stores.go, never on
// pgx or Redis directly, so they can be exercised with in-memory fakes.
//
// Every failure leaves this package as one of the sentinel errors
// below (match with errors.Is). Handlers translate them to HTTP.
// ===========================================

package service

import (
	"errors"
	"fmt"
)

// Outcome errors of the redirect resolver and the link workflow.
var (
	ErrNotFound = errors.New("link not found")

	// ErrGone covers links that existed but can no longer be used.
	ErrGone            = errors.New("link is gone")
	ErrLinkDeactivated = fmt.Errorf("%w: deactivated", ErrGone)
	ErrLinkExpired     = fmt.Errorf("%w: expired", ErrGone)

	ErrPasswordRequired = errors.New("password required")
	ErrUnauthorized     = errors.New("wrong password")

	ErrCodeConflict        = errors.New("short code already in use")
	ErrGenerationExhausted = errors.New("could not generate a free short code")

	ErrInvalidURL  = errors.New("invalid URL format")
	ErrInvalidCode = errors.New("invalid short code format")

	ErrStorage = errors.New("storage unavailable")
)

// Plan limiter errors.
var (
	ErrPlanLimitExceeded = errors.New("daily link limit reached for plan")
	ErrFeatureNotInPlan  = errors.New("feature not available on plan")
	ErrAccountInactive   = errors.New("account is inactive")
)

// StorageError is a persistence failure during a service operation.
// It matches ErrStorage and unwraps to the driver error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for every StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
