package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/models"
)

// DailyStatsRepository persists the per-link daily rollups.
type DailyStatsRepository struct {
	db *database.PostgresDB
}

// NewDailyStatsRepository creates a new daily stats repository.
func NewDailyStatsRepository(db *database.PostgresDB) *DailyStatsRepository {
	return &DailyStatsRepository{db: db}
}

// UpsertAll writes one row per (link, day) in a single transaction.
// Existing rows are overwritten, so rerunning a day never accumulates.
func (r *DailyStatsRepository) UpsertAll(ctx context.Context, stats []models.DailyLinkStats) error {
	if len(stats) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_analytics (link_id, day, total_clicks, unique_clicks,
			countries, referrers, devices, browsers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (link_id, day) DO UPDATE SET
			total_clicks  = EXCLUDED.total_clicks,
			unique_clicks = EXCLUDED.unique_clicks,
			countries     = EXCLUDED.countries,
			referrers     = EXCLUDED.referrers,
			devices       = EXCLUDED.devices,
			browsers      = EXCLUDED.browsers,
			updated_at    = EXCLUDED.updated_at
	`

	now := time.Now().UTC()

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for i := range stats {
			s := &stats[i]

			tables, err := encodeTables(s.Countries, s.Referrers, s.Devices, s.Browsers)
			if err != nil {
				return fmt.Errorf("failed to encode rollup for link %s: %w", s.LinkID, err)
			}

			_, err = tx.Exec(ctx, query,
				s.LinkID,
				dateOnly(s.Date),
				s.TotalClicks,
				s.UniqueClicks,
				tables[0],
				tables[1],
				tables[2],
				tables[3],
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert rollup for link %s: %w", s.LinkID, err)
			}
		}
		return nil
	})
}

// dateOnly keeps the calendar day of t, as seen in t's own location,
// and drops the rest so the DATE column stores the local day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// encodeTables marshals frequency tables to JSON text for the JSONB columns.
// A nil table is stored as {}.
func encodeTables(tables ...map[string]int64) ([]string, error) {
	out := make([]string, len(tables))
	for i, t := range tables {
		if t == nil {
			t = map[string]int64{}
		}
		data, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		out[i] = string(data)
	}
	return out, nil
}
