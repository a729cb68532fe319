package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/metrics"
	"github.com/user/linkpulse/internal/models"
	"go.uber.org/zap"
)

// CreateDailyAnalytics rolls up the clicks of the local calendar day
// containing date (today when date is zero) into one row per link and
// returns how many links had clicks. Rerunning a day overwrites its rows.
func (s *AnalyticsService) CreateDailyAnalytics(ctx context.Context, date time.Time) (int, error) {
	defer metrics.RecordReport("rollup", time.Now())

	if date.IsZero() {
		date = s.now()
	}
	y, m, d := date.In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	events, err := s.clicks.ListAllBetween(ctx, start, end)
	if err != nil {
		return 0, storageError("list clicks for rollup", err)
	}

	byLink := make(map[uuid.UUID][]models.ClickEvent)
	for _, e := range events {
		byLink[e.LinkID] = append(byLink[e.LinkID], e)
	}

	stats := make([]models.DailyLinkStats, 0, len(byLink))
	for linkID, linkEvents := range byLink {
		stats = append(stats, models.DailyLinkStats{
			LinkID:       linkID,
			Date:         start,
			TotalClicks:  int64(len(linkEvents)),
			UniqueClicks: uniqueIPs(linkEvents),
			Countries:    frequencies(linkEvents, DimensionCountry),
			Referrers:    frequencies(linkEvents, DimensionReferrer),
			Devices:      frequencies(linkEvents, DimensionDevice),
			Browsers:     frequencies(linkEvents, DimensionBrowser),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].LinkID.String() < stats[j].LinkID.String()
	})

	if err := s.daily.UpsertAll(ctx, stats); err != nil {
		return 0, storageError("store daily rollup", err)
	}

	metrics.RollupLinks.Set(float64(len(stats)))
	s.log.Info("Daily analytics rolled up",
		zap.String("date", start.Format(time.DateOnly)),
		zap.Int("links", len(stats)),
		zap.Int("clicks", len(events)),
	)
	return len(stats), nil
}
