package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/enrich"
	"github.com/user/linkpulse/internal/models"
)

// ===========================================
// Collaborator Interfaces
// ===========================================
// Implemented by the repository package (PostgreSQL), database.RedisDB,
// enrich.Enricher and the events publishers. Lookups that find nothing
// return repository.ErrNotFound; inserts that hit the unique index
// return repository.ErrAlreadyExists.

// LinkStore persists links.
type LinkStore interface {
	Exists(ctx context.Context, shortCode string) (bool, error)
	Create(ctx context.Context, link *models.Link) error
	GetByShortCode(ctx context.Context, shortCode string) (*models.Link, error)
	GetOwned(ctx context.Context, id, ownerID uuid.UUID) (*models.Link, error)
	ListByOwnerWithClicks(ctx context.Context, ownerID uuid.UUID) ([]models.LinkWithClicks, error)
	Deactivate(ctx context.Context, id, ownerID uuid.UUID) (string, error)
}

// ClickStore persists click events. List methods return events oldest first.
type ClickStore interface {
	Append(ctx context.Context, click *models.ClickEvent) error
	ListSince(ctx context.Context, linkIDs []uuid.UUID, since time.Time) ([]models.ClickEvent, error)
	ListBetween(ctx context.Context, linkIDs []uuid.UUID, from, to time.Time) ([]models.ClickEvent, error)
	ListAllBetween(ctx context.Context, from, to time.Time) ([]models.ClickEvent, error)
}

// DailyStatsStore persists daily rollups, overwriting existing rows.
type DailyStatsStore interface {
	UpsertAll(ctx context.Context, stats []models.DailyLinkStats) error
}

// UserLookup resolves a user's plan.
type UserLookup interface {
	GetPlan(ctx context.Context, userID uuid.UUID) (*models.UserPlan, error)
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	GetByKeyHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
	Create(ctx context.Context, key *models.APIKey) error
}

// Cache is a JSON key/value cache. GetJSON reports false on a miss and
// SetJSONIfAbsent reports false when the key already held a value.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	SetJSONIfAbsent(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Counter is a windowed counter used for plan quotas.
type Counter interface {
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)
	DecrementCounter(ctx context.Context, key string) error
}

// Enricher derives geo and device attributes for a visitor.
// It never fails; unknown attributes are left empty.
type Enricher interface {
	Enrich(ctx context.Context, ip, userAgent string) enrich.Visitor
}

// ClickPublisher fans recorded clicks out to downstream consumers.
type ClickPublisher interface {
	PublishClick(ctx context.Context, click models.ClickEvent) error
}
