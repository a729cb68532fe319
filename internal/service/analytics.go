package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/user/linkpulse/internal/metrics"
	"github.com/user/linkpulse/internal/models"
	"github.com/user/linkpulse/internal/repository"
	"go.uber.org/zap"
)

// ===========================================
// Analytics Aggregator
// ===========================================
// Reports are computed on read from raw click events. Day, hour and
// weekday buckets use the configured analytics location.

// AnalyticsService builds the dashboard and per-link reports and the
// daily rollup.
type AnalyticsService struct {
	links  LinkStore
	clicks ClickStore
	daily  DailyStatsStore
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time
}

// NewAnalyticsService creates an analytics service. A nil loc means UTC.
func NewAnalyticsService(links LinkStore, clicks ClickStore, daily DailyStatsStore, loc *time.Location, log *zap.Logger) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{
		links:  links,
		clicks: clicks,
		daily:  daily,
		loc:    loc,
		log:    log,
		now:    time.Now,
	}
}

// GetDashboardAnalytics summarizes every link owned by ownerID over period.
// An owner without links gets an all-zero report.
func (s *AnalyticsService) GetDashboardAnalytics(ctx context.Context, ownerID uuid.UUID, period string) (*models.DashboardAnalytics, error) {
	defer metrics.RecordReport("dashboard", time.Now())

	p := ParsePeriod(period)
	w := p.window(s.now())

	links, err := s.links.ListByOwnerWithClicks(ctx, ownerID)
	if err != nil {
		return nil, storageError("list links", err)
	}

	report := emptyDashboard(p)
	if len(links) == 0 {
		return report, nil
	}

	ids := make([]uuid.UUID, len(links))
	var totalClicks int64
	for i := range links {
		ids[i] = links[i].ID
		totalClicks += links[i].Clicks
	}

	current, err := s.clicks.ListSince(ctx, ids, w.Start)
	if err != nil {
		return nil, storageError("list current clicks", err)
	}
	previous, err := s.clicks.ListBetween(ctx, ids, w.PreviousStart, w.Start)
	if err != nil {
		return nil, storageError("list previous clicks", err)
	}

	totalURLs := int64(len(links))
	avg := float64(totalClicks) / float64(totalURLs)
	uniqueCurrent := uniqueIPs(current)

	report.Summary = models.DashboardSummary{
		TotalURLs:       totalURLs,
		TotalClicks:     totalClicks,
		UniqueClicks:    uniqueCurrent,
		ClicksInPeriod:  int64(len(current)),
		AvgClicksPerURL: avg,
		ClickRate:       avg * 100,
	}
	report.Comparison = models.Comparison{
		Clicks:       delta(int64(len(current)), int64(len(previous))),
		UniqueClicks: delta(uniqueCurrent, uniqueIPs(previous)),
		URLs:         models.Delta{Current: totalURLs, Previous: totalURLs},
	}

	bucket := func(t time.Time) string { return dayKey(t, s.loc) }
	if p.Weekly() {
		bucket = func(t time.Time) string { return weekKey(t, s.loc) }
	}

	report.Charts.ClicksOverTime = clicksOverTime(current, bucket)
	report.Charts.TopURLs = topURLs(links)
	report.Charts.TopCountries = topCountries(current)
	report.Charts.TopDevices = topDevices(current)
	report.Charts.TopBrowsers = topBrowsers(current)

	return report, nil
}

func emptyDashboard(p Period) *models.DashboardAnalytics {
	return &models.DashboardAnalytics{
		Period: p.Token,
		Charts: models.DashboardCharts{
			ClicksOverTime: []models.TimeBucket{},
			TopURLs:        []models.TopURL{},
			TopCountries:   []models.CountryStat{},
			TopCities:      []models.CityStat{},
			TopDevices:     []models.DeviceStat{},
			TopBrowsers:    []models.BrowserStat{},
			TopReferrers:   []models.ReferrerStat{},
		},
	}
}

func delta(current, previous int64) models.Delta {
	d := models.Delta{Current: current, Previous: previous, Change: current - previous}
	if previous > 0 {
		d.ChangePercentage = float64(d.Change) / float64(previous) * 100
	}
	return d
}

// topURLs ranks links by lifetime clicks. Per-link unique clicks are not
// computed for the dashboard and stay 0.
func topURLs(links []models.LinkWithClicks) []models.TopURL {
	ranked := make([]models.LinkWithClicks, len(links))
	copy(ranked, links)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Clicks > ranked[j].Clicks })
	if len(ranked) > topLimit {
		ranked = ranked[:topLimit]
	}

	rows := make([]models.TopURL, 0, len(ranked))
	for _, l := range ranked {
		title := l.Title
		if title == "" {
			title = l.OriginalURL
		}
		rows = append(rows, models.TopURL{
			ID:          l.ID,
			ShortCode:   l.ShortCode,
			Title:       title,
			OriginalURL: l.OriginalURL,
			Clicks:      l.Clicks,
			CreatedAt:   l.CreatedAt,
		})
	}
	return rows
}

// GetURLAnalytics reports on one link over period. It returns nil, nil
// when the link does not exist or is not owned by ownerID; no click is
// read in that case.
func (s *AnalyticsService) GetURLAnalytics(ctx context.Context, linkID, ownerID uuid.UUID, period string) (*models.URLAnalytics, error) {
	defer metrics.RecordReport("url", time.Now())

	p := ParsePeriod(period)
	w := p.window(s.now())

	link, err := s.links.GetOwned(ctx, linkID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("get link", err)
	}

	events, err := s.clicks.ListSince(ctx, []uuid.UUID{link.ID}, w.Start)
	if err != nil {
		return nil, storageError("list clicks", err)
	}

	days := math.Ceil(w.Now.Sub(w.Start).Hours() / 24)
	total := int64(len(events))

	summary := models.URLSummary{
		TotalClicks:  total,
		UniqueClicks: uniqueIPs(events),
		PeakDay:      peakDay(events, s.loc),
	}
	if days > 0 {
		summary.AvgClicksPerDay = float64(total) / days
	}
	if total > 0 {
		summary.FirstClick = events[0].Timestamp.In(s.loc).Format(time.RFC3339)
		summary.LastClick = events[total-1].Timestamp.In(s.loc).Format(time.RFC3339)
	}

	return &models.URLAnalytics{
		Period: p.Token,
		URL: models.URLInfo{
			ID:          link.ID,
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
			Title:       link.Title,
			CreatedAt:   link.CreatedAt,
		},
		Summary: summary,
		Charts: models.URLCharts{
			ClicksOverTime:     clicksOverTime(events, func(t time.Time) string { return dayKey(t, s.loc) }),
			TopCountries:       topCountries(events),
			TopDevices:         topDevices(events),
			TopBrowsers:        topBrowsers(events),
			TopReferrers:       topReferrers(events),
			HourlyDistribution: hourlyDistribution(events, s.loc),
			WeeklyDistribution: weeklyDistribution(events, s.loc),
		},
	}, nil
}

// peakDay is the busiest local day. Days are scanned in date order and
// only a strictly larger count replaces the leader, so the earliest
// day wins a tie.
func peakDay(events []models.ClickEvent, loc *time.Location) models.PeakDay {
	counts := make(map[string]int64)
	for i := range events {
		counts[dayKey(events[i].Timestamp, loc)]++
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var peak models.PeakDay
	for _, d := range dates {
		if counts[d] > peak.Clicks {
			peak = models.PeakDay{Date: d, Clicks: counts[d]}
		}
	}
	return peak
}

func hourlyDistribution(events []models.ClickEvent, loc *time.Location) []models.HourCount {
	hours := make([]models.HourCount, 24)
	for h := range hours {
		hours[h].Hour = h
	}
	for i := range events {
		hours[events[i].Timestamp.In(loc).Hour()].Clicks++
	}
	return hours
}

func weeklyDistribution(events []models.ClickEvent, loc *time.Location) []models.WeekdayCount {
	days := make([]models.WeekdayCount, 7)
	for d := range days {
		days[d].Day = time.Weekday(d).String()
	}
	for i := range events {
		days[events[i].Timestamp.In(loc).Weekday()].Clicks++
	}
	return days
}
