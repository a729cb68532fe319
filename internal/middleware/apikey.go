// ===========================================
// Package middleware - API Key Authentication
// ===========================================
// API keys identify the user a request acts for. Link ownership,
// analytics and plan limits all hang off the key's UserID.
//
// FLOW:
// 1. Extract the key from X-API-Key or Authorization: Bearer
// 2. Validate it (the service hashes it; raw keys are never stored)
// 3. Attach the key to the gin context
//
// Never log raw API keys.
// ===========================================

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/models"
	"go.uber.org/zap"
)

const apiKeyContextKey = "api_key"

// KeyValidator resolves a raw API key. A nil key with a nil error
// means the key is unknown or revoked.
type KeyValidator interface {
	ValidateKey(ctx context.Context, rawKey string) (*models.APIKey, error)
}

// APIKeyAuth is the middleware for API key authentication.
type APIKeyAuth struct {
	keys KeyValidator
	log  *zap.Logger
}

// NewAPIKeyAuth creates a new API key auth middleware.
func NewAPIKeyAuth(keys KeyValidator, log *zap.Logger) *APIKeyAuth {
	return &APIKeyAuth{keys: keys, log: log}
}

// RequireKey rejects requests without a valid API key.
func (a *APIKeyAuth) RequireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, err := a.extractAndValidate(c)
		if err != nil {
			a.abort(c, err)
			return
		}

		c.Set(apiKeyContextKey, apiKey)
		c.Next()
	}
}

// OptionalKey lets anonymous requests through but still rejects a key
// that is present and invalid, so a typo never silently turns an
// owned link into an anonymous one.
func (a *APIKeyAuth) OptionalKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, err := a.extractAndValidate(c)
		if errors.Is(err, ErrMissingAPIKey) {
			c.Next()
			return
		}
		if err != nil {
			a.abort(c, err)
			return
		}

		c.Set(apiKeyContextKey, apiKey)
		c.Next()
	}
}

func (a *APIKeyAuth) abort(c *gin.Context, err error) {
	var keyErr APIKeyError
	if errors.As(err, &keyErr) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "Invalid or missing API key",
			Code:  models.ErrCodeUnauthorized,
		})
		return
	}

	a.log.Error("API key validation failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{
		Error: "Authentication temporarily unavailable",
		Code:  models.ErrCodeStorageUnavailable,
	})
}

// extractAndValidate returns ErrMissingAPIKey or ErrInvalidAPIKey for
// client mistakes, and the validator's error for backend failures.
func (a *APIKeyAuth) extractAndValidate(c *gin.Context) (*models.APIKey, error) {
	rawKey := extractKey(c)
	if rawKey == "" {
		return nil, ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	apiKey, err := a.keys.ValidateKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, ErrInvalidAPIKey
	}

	return apiKey, nil
}

// extractKey reads X-API-Key first, then an Authorization bearer token.
// Query parameters are not accepted; they end up in access logs.
func extractKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}

	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}

	return ""
}

// Error types for API key validation
var (
	ErrMissingAPIKey = APIKeyError{Message: "API key is required"}
	ErrInvalidAPIKey = APIKeyError{Message: "API key is invalid"}
)

// APIKeyError represents an authentication error.
type APIKeyError struct {
	Message string
}

func (e APIKeyError) Error() string {
	return e.Message
}

// RequireUser lets through only requests whose key belongs to one of
// userIDs. Mount it after RequireKey. An empty list rejects everyone.
func RequireUser(userIDs []string) gin.HandlerFunc {
	allowed := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, raw := range userIDs {
		if id, err := uuid.Parse(raw); err == nil {
			allowed[id] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if owner := OwnerID(c); owner != nil {
			if _, ok := allowed[*owner]; ok {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
			Error: "This operation is restricted to operators",
			Code:  models.ErrCodeForbidden,
		})
	}
}

// ===========================================
// Context Helpers
// ===========================================

// GetAPIKeyFromContext retrieves the validated API key from context.
// Returns nil for anonymous requests.
func GetAPIKeyFromContext(c *gin.Context) *models.APIKey {
	if val, exists := c.Get(apiKeyContextKey); exists {
		if key, ok := val.(*models.APIKey); ok {
			return key
		}
	}
	return nil
}

// OwnerID returns the user the request acts for, or nil if anonymous.
func OwnerID(c *gin.Context) *uuid.UUID {
	key := GetAPIKeyFromContext(c)
	if key == nil {
		return nil
	}
	id := key.UserID
	return &id
}
