package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/repository"
	"go.uber.org/zap"
)

// ===========================================
// API Key Service
// ===========================================
// Keys look like "lp_live_" + 32 hex chars. Only the SHA-256 hash is
// stored; the raw key is shown once at creation. A fast hash is enough
// for high-entropy random keys.

const apiKeyPrefix = "lp_live_"

// APIKeyService issues and validates API keys.
type APIKeyService struct {
	repo APIKeyStore
	log  *zap.Logger
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(repo APIKeyStore, log *zap.Logger) *APIKeyService {
	return &APIKeyService{repo: repo, log: log}
}

// ValidateKey returns the key record for rawKey, or nil, nil if the key
// is unknown or revoked.
func (s *APIKeyService) ValidateKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	key, err := s.repo.GetByKeyHash(ctx, hashAPIKey(rawKey))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("validate API key", err)
	}

	go func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.repo.UpdateLastUsed(updateCtx, key.ID); err != nil {
			s.log.Warn("Failed to update API key usage", zap.String("key_id", key.ID.String()), zap.Error(err))
		}
	}()

	return key, nil
}

// GenerateKey creates a key for userID and returns the raw key, which
// is not recoverable afterwards.
func (s *APIKeyService) GenerateKey(ctx context.Context, userID uuid.UUID, name string, rateLimit int) (string, *models.APIKey, error) {
	rawKey, err := generateAPIKey()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate key: %w", err)
	}

	key := &models.APIKey{
		UserID:    userID,
		KeyHash:   hashAPIKey(rawKey),
		Name:      name,
		RateLimit: rateLimit,
		IsActive:  true,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return "", nil, storageError("save API key", err)
	}

	return rawKey, key, nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(b), nil
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
