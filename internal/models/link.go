// ===========================================
// Package models - Domain Models
// ===========================================
// Models are plain data containers shared by the handler, service and
// repository layers. The only logic allowed here is simple state checks.
//
// NAMING CONVENTION:
// - Singular nouns: Link, ClickEvent, APIKey
// - Request/Response suffixes for DTOs
// ===========================================

package models

import (
	"time"

	"github.com/google/uuid"
)

// Link maps a short code to its destination and access-control metadata.
// ShortCode is unique and never changes once assigned.
type Link struct {
	ID           uuid.UUID  `json:"id"`
	ShortCode    string     `json:"short_code"`
	OriginalURL  string     `json:"original_url"`
	Title        string     `json:"title,omitempty"`
	OwnerID      *uuid.UUID `json:"owner_id,omitempty"` // nil = anonymous link
	PasswordHash *string    `json:"-"`                  // bcrypt hash; never serialized
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsExpired checks if the link has passed its expiration time at now.
// Returns false if no expiration is set.
func (l *Link) IsExpired(now time.Time) bool {
	if l.ExpiresAt == nil {
		return false
	}
	return now.After(*l.ExpiresAt)
}

// HasPassword reports whether the link is gated behind a password.
func (l *Link) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

// OwnedBy reports whether ownerID owns the link.
func (l *Link) OwnedBy(ownerID uuid.UUID) bool {
	return l.OwnerID != nil && *l.OwnerID == ownerID
}

// LinkWithClicks is a link together with its lifetime click count.
type LinkWithClicks struct {
	Link
	Clicks int64 `json:"clicks"`
}

// APIKey represents an API key for authentication.
// The raw key is never stored, only its hash. Requests authenticated
// with a key act on behalf of UserID.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	KeyHash    string     `json:"-"`
	Name       string     `json:"name"`
	RateLimit  int        `json:"rate_limit"` // Requests per minute allowed
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// UserPlan is the subscription state of a user as seen by the core.
type UserPlan struct {
	UserID   uuid.UUID
	Tier     string
	IsActive bool
}
