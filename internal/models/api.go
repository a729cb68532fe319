package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================
// Request DTOs
// ===========================================

// CreateLinkRequest is the DTO for creating a new short link.
type CreateLinkRequest struct {
	URL        string `json:"url" binding:"required,url"`
	Title      string `json:"title,omitempty" binding:"omitempty,max=255"`
	CustomCode string `json:"custom_code,omitempty"`
	Password   string `json:"password,omitempty" binding:"omitempty,min=4,max=72"`

	// Expiration in seconds; 0 or omitted means never expires.
	ExpiresIn int `json:"expires_in,omitempty" binding:"omitempty,min=60"`
}

// ===========================================
// Response DTOs
// ===========================================

// CreateLinkResponse is returned after successfully creating a short link.
type CreateLinkResponse struct {
	ID        uuid.UUID  `json:"id"`
	ShortCode string     `json:"short_code"`
	ShortURL  string     `json:"short_url"`
	Protected bool       `json:"protected"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LinkListResponse wraps the links owned by the caller.
type LinkListResponse struct {
	Links []LinkWithClicks `json:"links"`
	Total int              `json:"total"`
}

// RollupResponse reports the outcome of a daily rollup.
type RollupResponse struct {
	Date  string `json:"date"`
	Links int    `json:"links"`
}

// ===========================================
// Error Response
// ===========================================

// ErrorResponse provides consistent error format across all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable message
	Code    string `json:"code,omitempty"`    // Machine-readable error code
	Details string `json:"details,omitempty"` // Additional context
}

// Error codes used in ErrorResponse.Code.
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeGone                = "GONE"
	ErrCodePasswordRequired    = "PASSWORD_REQUIRED"
	ErrCodeWrongPassword       = "WRONG_PASSWORD"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodePlanLimit           = "PLAN_LIMIT_EXCEEDED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeGenerationExhausted = "GENERATION_EXHAUSTED"
	ErrCodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status   string            `json:"status"`         // "healthy" or "unhealthy"
	Version  string            `json:"version"`        // Application version
	Services map[string]string `json:"services"`       // Dependency health (postgres, redis)
	Pool     *PoolStats        `json:"pool,omitempty"` // PostgreSQL connection pool usage
	Geo      string            `json:"geo,omitempty"`  // Geo lookup breaker state; never fails the check
}

// PoolStats is a snapshot of the PostgreSQL connection pool.
type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}
