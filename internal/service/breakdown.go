package service

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/user/linkpulse/internal/models"
)

// ===========================================
// Categorical Breakdowns
// ===========================================

// Dimension is a click attribute reports can group by.
type Dimension int

const (
	DimensionCountry Dimension = iota
	DimensionCity
	DimensionDevice
	DimensionBrowser
	DimensionOS
	DimensionReferrer
)

func (d Dimension) String() string {
	switch d {
	case DimensionCountry:
		return "country"
	case DimensionCity:
		return "city"
	case DimensionDevice:
		return "device"
	case DimensionBrowser:
		return "browser"
	case DimensionOS:
		return "os"
	case DimensionReferrer:
		return "referrer"
	default:
		return "unknown"
	}
}

// Value extracts the dimension's value from a click. Referrers are
// reduced to their host name.
func (d Dimension) Value(e *models.ClickEvent) string {
	switch d {
	case DimensionCountry:
		return e.Country
	case DimensionCity:
		return e.City
	case DimensionDevice:
		return e.Device
	case DimensionBrowser:
		return e.Browser
	case DimensionOS:
		return e.OS
	case DimensionReferrer:
		return ReferrerDomain(e.Referer)
	default:
		return ""
	}
}

// Referrer labels.
const (
	ReferrerDirect  = "Direct"
	ReferrerUnknown = "Unknown"
)

// ReferrerDomain returns the host name of a Referer header, "Direct"
// when there was none and "Unknown" when it has no parsable host.
func ReferrerDomain(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return ReferrerDirect
	}
	u, err := url.Parse(referer)
	if err != nil || u.Hostname() == "" {
		return ReferrerUnknown
	}
	return strings.ToLower(u.Hostname())
}

// valueCount is one group of a breakdown.
type valueCount struct {
	value  string
	clicks int64
}

// countBy groups events by dim, skipping empty values, and returns the
// groups by descending count (ties by value) plus the number of events
// that had a value.
func countBy(events []models.ClickEvent, dim Dimension) ([]valueCount, int64) {
	counts := make(map[string]int64)
	var total int64
	for i := range events {
		v := dim.Value(&events[i])
		if v == "" {
			continue
		}
		counts[v]++
		total++
	}

	groups := make([]valueCount, 0, len(counts))
	for v, n := range counts {
		groups = append(groups, valueCount{value: v, clicks: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].clicks != groups[j].clicks {
			return groups[i].clicks > groups[j].clicks
		}
		return groups[i].value < groups[j].value
	})
	return groups, total
}

// frequencies is countBy as a value->count table.
func frequencies(events []models.ClickEvent, dim Dimension) map[string]int64 {
	groups, _ := countBy(events, dim)
	table := make(map[string]int64, len(groups))
	for _, g := range groups {
		table[g.value] = g.clicks
	}
	return table
}

// topN returns the limit largest groups of dim as rows built by build.
// Percentages are over events with a non-empty value, so they sum to 100
// across all groups.
func topN[T any](events []models.ClickEvent, dim Dimension, limit int, build func(value string, clicks int64, pct float64) T) []T {
	groups, total := countBy(events, dim)
	if len(groups) > limit {
		groups = groups[:limit]
	}

	rows := make([]T, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, build(g.value, g.clicks, float64(g.clicks)/float64(total)*100))
	}
	return rows
}

const topLimit = 10

func topCountries(events []models.ClickEvent) []models.CountryStat {
	return topN(events, DimensionCountry, topLimit, func(v string, n int64, pct float64) models.CountryStat {
		return models.CountryStat{Country: v, Clicks: n, Percentage: pct}
	})
}

func topDevices(events []models.ClickEvent) []models.DeviceStat {
	return topN(events, DimensionDevice, topLimit, func(v string, n int64, pct float64) models.DeviceStat {
		return models.DeviceStat{Device: v, Clicks: n, Percentage: pct}
	})
}

func topBrowsers(events []models.ClickEvent) []models.BrowserStat {
	return topN(events, DimensionBrowser, topLimit, func(v string, n int64, pct float64) models.BrowserStat {
		return models.BrowserStat{Browser: v, Clicks: n, Percentage: pct}
	})
}

func topReferrers(events []models.ClickEvent) []models.ReferrerStat {
	return topN(events, DimensionReferrer, topLimit, func(v string, n int64, pct float64) models.ReferrerStat {
		return models.ReferrerStat{Referrer: v, Domain: v, Clicks: n, Percentage: pct}
	})
}

// ===========================================
// Time Buckets
// ===========================================

// dayKey is the local calendar date of t.
func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// weekKey is the date of the Sunday starting t's local week.
func weekKey(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc).Format(time.DateOnly)
}

// clicksOverTime buckets events by key and returns non-empty buckets in
// ascending date order.
func clicksOverTime(events []models.ClickEvent, key func(time.Time) string) []models.TimeBucket {
	type bucket struct {
		clicks int64
		ips    map[string]struct{}
	}
	buckets := make(map[string]*bucket)

	for i := range events {
		k := key(events[i].Timestamp)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{ips: make(map[string]struct{})}
			buckets[k] = b
		}
		b.clicks++
		if events[i].IP != "" {
			b.ips[events[i].IP] = struct{}{}
		}
	}

	series := make([]models.TimeBucket, 0, len(buckets))
	for k, b := range buckets {
		series = append(series, models.TimeBucket{Date: k, Clicks: b.clicks, UniqueClicks: int64(len(b.ips))})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series
}

// uniqueIPs counts distinct non-empty IP addresses.
func uniqueIPs(events []models.ClickEvent) int64 {
	seen := make(map[string]struct{}, len(events))
	for i := range events {
		if events[i].IP != "" {
			seen[events[i].IP] = struct{}{}
		}
	}
	return int64(len(seen))
}
