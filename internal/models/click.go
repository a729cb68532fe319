package models

import (
	"time"

	"github.com/google/uuid"
)

// ClickEvent is one successful redirect through a link.
// Click events are append-only.
type ClickEvent struct {
	ID        uuid.UUID `json:"id"`
	LinkID    uuid.UUID `json:"link_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Referer   string    `json:"referer,omitempty"`

	// Derived at ingestion; empty when the lookup failed.
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
	Device  string `json:"device,omitempty"`
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// DailyLinkStats is the per-link, per-day rollup keyed by (LinkID, Date).
type DailyLinkStats struct {
	LinkID       uuid.UUID        `json:"link_id"`
	Date         time.Time        `json:"date"` // start of day in the analytics location
	TotalClicks  int64            `json:"total_clicks"`
	UniqueClicks int64            `json:"unique_clicks"`
	Countries    map[string]int64 `json:"countries"`
	Referrers    map[string]int64 `json:"referrers"`
	Devices      map[string]int64 `json:"devices"`
	Browsers     map[string]int64 `json:"browsers"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
