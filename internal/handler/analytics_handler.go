package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/models"
	"go.uber.org/zap"
)

// AnalyticsReporter builds analytics reports and rollups.
type AnalyticsReporter interface {
	GetDashboardAnalytics(ctx context.Context, ownerID uuid.UUID, period string) (*models.DashboardAnalytics, error)
	GetURLAnalytics(ctx context.Context, linkID, ownerID uuid.UUID, period string) (*models.URLAnalytics, error)
	CreateDailyAnalytics(ctx context.Context, date time.Time) (int, error)
}

// AnalyticsHandler serves analytics reports.
type AnalyticsHandler struct {
	analytics AnalyticsReporter
	loc       *time.Location
	log       *zap.Logger
	now       func() time.Time
}

// NewAnalyticsHandler creates a new analytics handler. loc is the zone
// rollup dates are interpreted in.
func NewAnalyticsHandler(analytics AnalyticsReporter, loc *time.Location, log *zap.Logger) *AnalyticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsHandler{analytics: analytics, loc: loc, log: log, now: time.Now}
}

// ===========================================
// GET /api/analytics/dashboard?period=30d
// ===========================================
// Period is one of 7d, 30d, 90d, 1y. Anything else falls back to 30d.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	report, err := h.analytics.GetDashboardAnalytics(c.Request.Context(), owner, c.Query("period"))
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// ===========================================
// GET /api/analytics/links/:id?period=30d
// ===========================================
func (h *AnalyticsHandler) Link(c *gin.Context) {
	owner, ok := requireOwner(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid link id", "id must be a UUID")
		return
	}

	report, err := h.analytics.GetURLAnalytics(c.Request.Context(), id, owner, c.Query("period"))
	if err != nil {
		handleError(c, h.log, err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "Link not found",
			Code:  models.ErrCodeNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ===========================================
// POST /api/analytics/rollup?date=2025-07-01
// ===========================================
// Rolls up one calendar day, today when date is omitted. Safe to
// repeat: rows are overwritten, not accumulated.
func (h *AnalyticsHandler) Rollup(c *gin.Context) {
	day := h.now().In(h.loc)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
		if err != nil {
			badRequest(c, "Invalid date", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	n, err := h.analytics.CreateDailyAnalytics(c.Request.Context(), day)
	if err != nil {
		handleError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, models.RollupResponse{
		Date:  day.Format(time.DateOnly),
		Links: n,
	})
}
