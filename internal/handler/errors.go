// ===========================================
// Package handler - HTTP Request Handlers
// ===========================================
// Handlers are thin:
// 1. Parse the request
// 2. Call a service
// 3. Format the response
//
// Every service error goes through handleError so all endpoints share
// one error format and one status mapping.
// ===========================================

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/service"
	"go.uber.org/zap"
)

// handleError converts service errors to HTTP responses. Details of
// storage and unknown errors are logged, never returned.
func handleError(c *gin.Context, log *zap.Logger, err error) {
	status, resp := errorResponse(err)

	switch {
	case status >= http.StatusInternalServerError:
		log.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		log.Info("Request rejected by plan", zap.String("path", c.FullPath()), zap.Error(err))
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func errorResponse(err error) (int, models.ErrorResponse) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, models.ErrorResponse{
			Error: "Link not found",
			Code:  models.ErrCodeNotFound,
		}

	case errors.Is(err, service.ErrLinkExpired):
		return http.StatusGone, models.ErrorResponse{
			Error: "Link has expired",
			Code:  models.ErrCodeGone,
		}

	case errors.Is(err, service.ErrGone):
		return http.StatusGone, models.ErrorResponse{
			Error: "Link is no longer available",
			Code:  models.ErrCodeGone,
		}

	case errors.Is(err, service.ErrPasswordRequired):
		return http.StatusUnauthorized, models.ErrorResponse{
			Error:   "Password required",
			Code:    models.ErrCodePasswordRequired,
			Details: "POST the password as form field \"password\" to this URL",
		}

	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, models.ErrorResponse{
			Error: "Wrong password",
			Code:  models.ErrCodeWrongPassword,
		}

	case errors.Is(err, service.ErrCodeConflict):
		return http.StatusConflict, models.ErrorResponse{
			Error: "Short code already taken",
			Code:  models.ErrCodeConflict,
		}

	case errors.Is(err, service.ErrInvalidCode):
		return http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid short code format",
			Code:    models.ErrCodeInvalidInput,
			Details: "Code must be 3 or more letters, digits, '-' or '_' and not a reserved word",
		}

	case errors.Is(err, service.ErrInvalidURL):
		return http.StatusBadRequest, models.ErrorResponse{
			Error:   "Invalid URL format",
			Code:    models.ErrCodeInvalidInput,
			Details: "URL must be an absolute http:// or https:// URL",
		}

	case errors.Is(err, service.ErrPlanLimitExceeded):
		return http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "Daily link limit reached",
			Code:    models.ErrCodePlanLimit,
			Details: err.Error(),
		}

	case errors.Is(err, service.ErrFeatureNotInPlan):
		return http.StatusForbidden, models.ErrorResponse{
			Error:   "Feature not available on your plan",
			Code:    models.ErrCodeForbidden,
			Details: err.Error(),
		}

	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, models.ErrorResponse{
			Error: "Account is inactive",
			Code:  models.ErrCodeForbidden,
		}

	case errors.Is(err, service.ErrGenerationExhausted):
		return http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "Could not allocate a short code",
			Code:    models.ErrCodeGenerationExhausted,
			Details: "Retry the request",
		}

	case errors.Is(err, service.ErrStorage):
		return http.StatusServiceUnavailable, models.ErrorResponse{
			Error: "Storage temporarily unavailable",
			Code:  models.ErrCodeStorageUnavailable,
		}

	default:
		return http.StatusInternalServerError, models.ErrorResponse{
			Error: "Internal server error",
			Code:  models.ErrCodeInternalError,
		}
	}
}

func badRequest(c *gin.Context, message, details string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   message,
		Code:    models.ErrCodeInvalidInput,
		Details: details,
	})
}
