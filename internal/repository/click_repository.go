package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/linkpulse/internal/models"
)

const clickColumns = `id, link_id, ip, user_agent, referer, country, city, device, browser, os, created_at`

// ClickRepository stores click events. Events are append-only: there is
// no update or delete here.
type ClickRepository struct {
	db *pgxpool.Pool
}

// NewClickRepository creates a new click repository.
func NewClickRepository(db *pgxpool.Pool) *ClickRepository {
	return &ClickRepository{db: db}
}

// Append records one click event.
func (r *ClickRepository) Append(ctx context.Context, click *models.ClickEvent) error {
	query := `
		INSERT INTO click_events (` + clickColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if click.ID == uuid.Nil {
		click.ID = uuid.New()
	}
	if click.Timestamp.IsZero() {
		click.Timestamp = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, query,
		click.ID,
		click.LinkID,
		click.IP,
		click.UserAgent,
		click.Referer,
		click.Country,
		click.City,
		click.Device,
		click.Browser,
		click.OS,
		click.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append click: %w", err)
	}

	return nil
}

// ListSince returns the events of the given links with a timestamp at or
// after since, oldest first.
func (r *ClickRepository) ListSince(ctx context.Context, linkIDs []uuid.UUID, since time.Time) ([]models.ClickEvent, error) {
	if len(linkIDs) == 0 {
		return []models.ClickEvent{}, nil
	}

	query := `
		SELECT ` + clickColumns + `
		FROM click_events
		WHERE link_id = ANY($1) AND created_at >= $2
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, linkIDs, since)
}

// ListBetween returns the events of the given links in [from, to), oldest first.
func (r *ClickRepository) ListBetween(ctx context.Context, linkIDs []uuid.UUID, from, to time.Time) ([]models.ClickEvent, error) {
	if len(linkIDs) == 0 {
		return []models.ClickEvent{}, nil
	}

	query := `
		SELECT ` + clickColumns + `
		FROM click_events
		WHERE link_id = ANY($1) AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, linkIDs, from, to)
}

// ListAllBetween returns every event in [from, to) regardless of link.
// Used by the daily rollup.
func (r *ClickRepository) ListAllBetween(ctx context.Context, from, to time.Time) ([]models.ClickEvent, error) {
	query := `
		SELECT ` + clickColumns + `
		FROM click_events
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY link_id, created_at ASC
	`
	return r.list(ctx, query, from, to)
}

func (r *ClickRepository) list(ctx context.Context, query string, args ...any) ([]models.ClickEvent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ClickEvent, error) {
		var c models.ClickEvent
		err := row.Scan(
			&c.ID,
			&c.LinkID,
			&c.IP,
			&c.UserAgent,
			&c.Referer,
			&c.Country,
			&c.City,
			&c.Device,
			&c.Browser,
			&c.OS,
			&c.Timestamp,
		)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan clicks: %w", err)
	}

	if events == nil {
		events = []models.ClickEvent{}
	}
	return events, nil
}
