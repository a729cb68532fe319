package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/metrics"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ===========================================
// Redirect Resolver
// ===========================================
// Resolve decides what a visit to a short code gets. Checks run in a
// fixed order and the first match wins:
//
//  1. unknown code              -> ErrNotFound
//  2. deactivated               -> ErrLinkDeactivated (ErrGone)
//  3. expired                   -> ErrLinkExpired (ErrGone)
//  4. protected, no password    -> ErrPasswordRequired
//  5. protected, wrong password -> ErrUnauthorized
//  6. otherwise                 -> redirect, and exactly one click recorded
//
// Dead links are rejected before the password check so a dead link
// never reveals that it is protected.

// ResolveRequest describes one visit.
type ResolveRequest struct {
	ShortCode string
	Password  *string // nil when the visitor supplied none
	IP        string
	UserAgent string
	Referer   string
}

// Resolution is a successful redirect decision.
type Resolution struct {
	URL    string
	LinkID uuid.UUID
}

// Resolver turns visits into redirects and click events.
type Resolver struct {
	links     LinkStore
	clicks    ClickStore
	cache     linkCache
	enricher  Enricher
	publisher ClickPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewResolver creates a resolver. cache and publisher may be nil.
func NewResolver(
	links LinkStore,
	clicks ClickStore,
	cache Cache,
	cacheTTL time.Duration,
	enricher Enricher,
	publisher ClickPublisher,
	log *zap.Logger,
) *Resolver {
	return &Resolver{
		links:     links,
		clicks:    clicks,
		cache:     linkCache{cache: cache, ttl: cacheTTL, log: log},
		enricher:  enricher,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Resolve runs the ordered checks for req.ShortCode. On success the
// click is stored before Resolve returns; if storing fails the visit
// is reported as a storage error rather than redirected uncounted.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	res, err := r.resolve(ctx, req)
	metrics.RecordRedirect(outcomeOf(err))
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, req ResolveRequest) (*Resolution, error) {
	link, err := r.lookup(ctx, req.ShortCode)
	if err != nil {
		return nil, err
	}

	if !link.IsActive {
		return nil, ErrLinkDeactivated
	}

	now := r.now()
	if link.IsExpired(now) {
		return nil, ErrLinkExpired
	}

	if link.HasPassword() {
		if req.Password == nil || *req.Password == "" {
			return nil, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(*req.Password)); err != nil {
			return nil, ErrUnauthorized
		}
	}

	click := &models.ClickEvent{
		ID:        uuid.New(),
		LinkID:    link.ID,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Referer:   req.Referer,
		Timestamp: now.UTC(),
	}
	if r.enricher != nil {
		v := r.enricher.Enrich(ctx, req.IP, req.UserAgent)
		click.Country, click.City = v.Country, v.City
		click.Device, click.Browser, click.OS = v.Device, v.Browser, v.OS
	}

	if err := r.clicks.Append(ctx, click); err != nil {
		r.log.Error("Failed to record click", zap.String("short_code", link.ShortCode), zap.Error(err))
		return nil, storageError("record click", err)
	}

	r.publishAsync(*click)

	return &Resolution{URL: link.OriginalURL, LinkID: link.ID}, nil
}

// lookup reads the link through the cache.
func (r *Resolver) lookup(ctx context.Context, shortCode string) (*models.Link, error) {
	if link := r.cache.get(ctx, shortCode); link != nil {
		return link, nil
	}

	link, err := r.links.GetByShortCode(ctx, shortCode)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("lookup link", err)
	}

	r.cache.setAsync(link)
	return link, nil
}

func (r *Resolver) publishAsync(click models.ClickEvent) {
	if r.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.publisher.PublishClick(ctx, click); err != nil {
			metrics.EventPublishFailures.Inc()
			r.log.Warn("Failed to publish click", zap.String("link_id", click.LinkID.String()), zap.Error(err))
		}
	}()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeRedirect
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrGone):
		return metrics.OutcomeGone
	case errors.Is(err, ErrPasswordRequired):
		return metrics.OutcomePasswordRequired
	case errors.Is(err, ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	default:
		return metrics.OutcomeError
	}
}
