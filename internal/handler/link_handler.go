package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/middleware"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/service"
	"go.uber.org/zap"
)

// LinkManager is the link workflow the handler drives.
type LinkManager interface {
	Create(ctx context.Context, in service.CreateLinkInput) (*models.CreateLinkResponse, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.LinkWithClicks, error)
	Deactivate(ctx context.Context, linkID, ownerID uuid.UUID) error
}

// LinkHandler handles link management requests.
type LinkHandler struct {
	links LinkManager
	log   *zap.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(links LinkManager, log *zap.Logger) *LinkHandler {
	return &LinkHandler{links: links, log: log}
}

// ===========================================
// POST /api/links
// ===========================================
// Creates a short link. Anonymous callers are allowed; with an API key
// the link is owned by the key's user.
//
// Request:
//
//	{
//	  "url": "https://example.com/very/long/url",
//	  "custom_code": "launch",  // optional, plan permitting
//	  "password": "s3cret",     // optional, plan permitting
//	  "expires_in": 3600        // optional, seconds
//	}
//
// Response (201):
//
//	{
//	  "id": "...",
//	  "short_code": "launch",
//	  "short_url": "http://localhost:8080/launch",
//	  "protected": true,
//	  "expires_at": "2025-07-01T10:00:00Z"
//	}
func (h *LinkHandler) Create(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.links.Create(c.Request.Context(), service.CreateLinkInput{
		OwnerID:    middleware.OwnerID(c),
		URL:        req.URL,
		Title:      req.Title,
		CustomCode: req.CustomCode,
		Password:   req.Password,
		ExpiresIn:  req.ExpiresIn,
		ClientIP:   middleware.ClientIP(c),
	})
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ===========================================
// GET /api/links
// ===========================================
// Lists the caller's links, newest first, with lifetime click counts.
func (h *LinkHandler) List(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	links, err := h.links.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.LinkListResponse{Links: links, Total: len(links)})
}

// ===========================================
// DELETE /api/links/:id
// ===========================================
// Deactivates a link. The code stays reserved and visits get 410.
// Links owned by someone else are reported as 404.
func (h *LinkHandler) Deactivate(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid link id", "id must be a UUID")
		return
	}

	if err := h.links.Deactivate(c.Request.Context(), id, owner); err != nil {
		handleError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// requireOwner returns the authenticated user. Routes using it sit
// behind RequireKey, so a miss here means the route is misconfigured.
func requireOwner(c *gin.Context) (uuid.UUID, bool) {
	owner := middleware.OwnerID(c)
	if owner == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
			Error: "API key required",
			Code:  models.ErrCodeUnauthorized,
		})
		return uuid.Nil, false
	}
	return *owner, true
}
