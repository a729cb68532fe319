package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/metrics"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// reservedCodes collide with top-level routes and can never resolve.
var reservedCodes = map[string]bool{
	"api":     true,
	"health":  true,
	"ready":   true,
	"live":    true,
	"metrics": true,
}

// CreateLinkInput is a validated request to create a link.
type CreateLinkInput struct {
	OwnerID    *uuid.UUID // nil for anonymous links
	URL        string
	Title      string
	CustomCode string
	Password   string
	ExpiresIn  int // seconds; 0 means never
	ClientIP   string
}

// LinkService creates, lists and deactivates links.
type LinkService struct {
	links      LinkStore
	generator  *CodeGenerator
	plans      *PlanLimiter
	cache      linkCache
	cfg        config.ShortenerConfig
	log        *zap.Logger
	now        func() time.Time
	bcryptCost int
}

// NewLinkService creates a link service.
func NewLinkService(
	links LinkStore,
	generator *CodeGenerator,
	plans *PlanLimiter,
	cache Cache,
	cacheTTL time.Duration,
	cfg config.ShortenerConfig,
	log *zap.Logger,
) *LinkService {
	return &LinkService{
		links:      links,
		generator:  generator,
		plans:      plans,
		cache:      linkCache{cache: cache, ttl: cacheTTL, log: log},
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Create shortens a URL.
//
// FLOW:
// 1. Validate the URL and any custom code
// 2. Check the caller's plan and take a unit of daily quota
// 3. Pick a code and hash the password
// 4. Insert; a generated code that loses an insert race is redrawn once
// 5. Warm the cache in the background
func (s *LinkService) Create(ctx context.Context, in CreateLinkInput) (*models.CreateLinkResponse, error) {
	if !isValidURL(in.URL) {
		return nil, ErrInvalidURL
	}
	custom := in.CustomCode != ""
	if custom && !isValidShortCode(in.CustomCode, s.cfg.MaxCustomLength) {
		return nil, ErrInvalidCode
	}

	reservation, err := s.plans.Reserve(ctx, PlanRequest{
		OwnerID:    in.OwnerID,
		ClientIP:   in.ClientIP,
		CustomCode: custom,
		Password:   in.Password != "",
		Expiry:     in.ExpiresIn > 0,
	})
	if err != nil {
		return nil, err
	}

	link, err := s.create(ctx, in)
	if err != nil {
		reservation.Cancel(ctx)
		return nil, err
	}

	kind := "generated"
	if custom {
		kind = "custom"
	}
	metrics.LinksCreated.WithLabelValues(kind).Inc()
	s.log.Info("Link created",
		zap.String("short_code", link.ShortCode),
		zap.Bool("custom", custom),
		zap.Bool("protected", link.HasPassword()),
	)

	s.cache.setAsync(link)

	return &models.CreateLinkResponse{
		ID:        link.ID,
		ShortCode: link.ShortCode,
		ShortURL:  fmt.Sprintf("%s/%s", strings.TrimSuffix(s.cfg.BaseURL, "/"), link.ShortCode),
		Protected: link.HasPassword(),
		ExpiresAt: link.ExpiresAt,
	}, nil
}

func (s *LinkService) create(ctx context.Context, in CreateLinkInput) (*models.Link, error) {
	code, err := s.generator.Generate(ctx, in.CustomCode)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	link := &models.Link{
		ID:          uuid.New(),
		ShortCode:   code,
		OriginalURL: in.URL,
		Title:       strings.TrimSpace(in.Title),
		OwnerID:     in.OwnerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		link.PasswordHash = &h
	}

	if in.ExpiresIn > 0 {
		t := now.Add(time.Duration(in.ExpiresIn) * time.Second)
		link.ExpiresAt = &t
	}

	for retried := false; ; retried = true {
		err := s.links.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			return nil, storageError("create link", err)
		}

		if in.CustomCode != "" {
			s.log.Info("Custom short code taken at insert", zap.String("short_code", link.ShortCode))
			return nil, ErrCodeConflict
		}
		if retried {
			metrics.CodeGenerationExhausted.Inc()
			s.log.Error("Generated short code conflicted twice at insert", zap.String("short_code", link.ShortCode))
			return nil, ErrGenerationExhausted
		}

		s.log.Warn("Generated short code conflicted at insert, redrawing", zap.String("short_code", link.ShortCode))
		if link.ShortCode, err = s.generator.Generate(ctx, ""); err != nil {
			return nil, err
		}
	}
}

// ListByOwner returns the caller's links with lifetime click counts.
func (s *LinkService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.LinkWithClicks, error) {
	links, err := s.links.ListByOwnerWithClicks(ctx, ownerID)
	if err != nil {
		return nil, storageError("list links", err)
	}
	return links, nil
}

// Deactivate disables an owned link. Its code stays reserved and
// visits to it resolve to ErrGone from then on.
func (s *LinkService) Deactivate(ctx context.Context, linkID, ownerID uuid.UUID) error {
	shortCode, err := s.links.Deactivate(ctx, linkID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return storageError("deactivate link", err)
	}

	s.cache.markInactive(ctx, linkID, shortCode)
	s.log.Info("Link deactivated", zap.String("short_code", shortCode))
	return nil
}

// ===========================================
// Validation Helpers
// ===========================================

// isValidURL accepts absolute http(s) URLs with a host.
// Blocks javascript:, data:, file: and friends.
func isValidURL(rawURL string) bool {
	if len(rawURL) < 10 || len(rawURL) > 2083 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isValidShortCode checks a custom code: 3..maxLength characters from
// [A-Za-z0-9_-], not a reserved route. Case is preserved.
func isValidShortCode(code string, maxLength int) bool {
	if len(code) < 3 || len(code) > maxLength {
		return false
	}
	if reservedCodes[strings.ToLower(code)] {
		return false
	}
	for _, c := range code {
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isNumber := c >= '0' && c <= '9'
		if !isLetter && !isNumber && c != '-' && c != '_' {
			return false
		}
	}
	return true
}
