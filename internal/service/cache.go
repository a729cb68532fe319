package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/metrics"
	"github.com/user/linkpulse/internal/models"
	"go.uber.org/zap"
)

// ===========================================
// Link Cache
// ===========================================
// Cache-aside over Redis: read the cache, fall back to PostgreSQL on a
// miss or a cache error, then fill the cache in the background.
// Background fills only write an empty key, so a fill that started
// before a deactivation cannot resurrect the link. Deactivation
// overwrites the entry with an inactive tombstone.

// cachedLink is the cached form of a link. Unlike models.Link it keeps
// the password hash, which the resolver needs.
type cachedLink struct {
	ID           uuid.UUID  `json:"id"`
	ShortCode    string     `json:"short_code"`
	OriginalURL  string     `json:"original_url"`
	Title        string     `json:"title,omitempty"`
	OwnerID      *uuid.UUID `json:"owner_id,omitempty"`
	PasswordHash *string    `json:"password_hash,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toCached(l *models.Link) cachedLink {
	return cachedLink(*l)
}

func (c cachedLink) link() *models.Link {
	l := models.Link(c)
	return &l
}

// linkCache wraps a Cache with link-specific helpers. A nil Cache
// disables caching.
type linkCache struct {
	cache Cache
	ttl   time.Duration
	log   *zap.Logger
}

func (c linkCache) get(ctx context.Context, shortCode string) *models.Link {
	if c.cache == nil {
		return nil
	}

	var cached cachedLink
	found, err := c.cache.GetJSON(ctx, database.LinkCacheKey(shortCode), &cached)
	if err != nil {
		metrics.LinkCacheResults.WithLabelValues("error").Inc()
		c.log.Warn("Link cache read failed", zap.String("short_code", shortCode), zap.Error(err))
		return nil
	}
	if !found {
		metrics.LinkCacheResults.WithLabelValues("miss").Inc()
		return nil
	}

	metrics.LinkCacheResults.WithLabelValues("hit").Inc()
	return cached.link()
}

// setAsync caches link in the background, never past its expiry.
func (c linkCache) setAsync(link *models.Link) {
	if c.cache == nil {
		return
	}

	ttl := c.ttl
	if link.ExpiresAt != nil {
		if remaining := time.Until(*link.ExpiresAt); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}

	value := toCached(link)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := c.cache.SetJSONIfAbsent(ctx, database.LinkCacheKey(value.ShortCode), value, ttl); err != nil {
			c.log.Warn("Link cache write failed", zap.String("short_code", value.ShortCode), zap.Error(err))
		}
	}()
}

// markInactive replaces the cached entry with an inactive tombstone
// that outlives any fill already in flight. If the write fails the key
// is deleted instead.
func (c linkCache) markInactive(ctx context.Context, linkID uuid.UUID, shortCode string) {
	if c.cache == nil {
		return
	}

	key := database.LinkCacheKey(shortCode)
	tombstone := cachedLink{ID: linkID, ShortCode: shortCode, IsActive: false}

	err := c.cache.SetJSON(ctx, key, tombstone, c.ttl)
	if err == nil {
		return
	}
	c.log.Warn("Link cache tombstone write failed", zap.String("short_code", shortCode), zap.Error(err))

	if err := c.cache.Delete(ctx, key); err != nil {
		// Entry still expires after ttl.
		c.log.Warn("Link cache invalidation failed", zap.String("short_code", shortCode), zap.Error(err))
	}
}
