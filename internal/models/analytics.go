package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================
// Analytics Reports
// ===========================================
// Report field names are an external contract consumed by dashboards.
// They are camelCase, unlike the rest of the API.

// DashboardAnalytics summarizes every link owned by one user.
type DashboardAnalytics struct {
	Period     string           `json:"period"`
	Summary    DashboardSummary `json:"summary"`
	Comparison Comparison       `json:"comparison"`
	Charts     DashboardCharts  `json:"charts"`
}

// DashboardSummary holds the headline numbers of a dashboard report.
// TotalClicks is lifetime; the other click figures cover the period only.
// ClickRate equals AvgClicksPerURL*100 and is kept as its own field.
type DashboardSummary struct {
	TotalURLs       int64   `json:"totalUrls"`
	TotalClicks     int64   `json:"totalClicks"`
	UniqueClicks    int64   `json:"uniqueClicks"`
	ClicksInPeriod  int64   `json:"clicksInPeriod"`
	AvgClicksPerURL float64 `json:"avgClicksPerUrl"`
	ClickRate       float64 `json:"clickRate"`
}

// Comparison is the period-over-period block.
// URLs always reports a zero delta: link-count history is not tracked.
type Comparison struct {
	Clicks       Delta `json:"clicks"`
	UniqueClicks Delta `json:"uniqueClicks"`
	URLs         Delta `json:"urls"`
}

// Delta compares a value in the current window with the previous one.
type Delta struct {
	Current          int64   `json:"current"`
	Previous         int64   `json:"previous"`
	Change           int64   `json:"change"`
	ChangePercentage float64 `json:"changePercentage"`
}

// DashboardCharts holds the time series and breakdowns of a dashboard.
// TopCities and TopReferrers are always empty in this report.
type DashboardCharts struct {
	ClicksOverTime []TimeBucket   `json:"clicksOverTime"`
	TopURLs        []TopURL       `json:"topUrls"`
	TopCountries   []CountryStat  `json:"topCountries"`
	TopCities      []CityStat     `json:"topCities"`
	TopDevices     []DeviceStat   `json:"topDevices"`
	TopBrowsers    []BrowserStat  `json:"topBrowsers"`
	TopReferrers   []ReferrerStat `json:"topReferrers"`
}

// TimeBucket is one day (or one Sunday-aligned week) of clicks.
type TimeBucket struct {
	Date         string `json:"date"`
	Clicks       int64  `json:"clicks"`
	UniqueClicks int64  `json:"uniqueClicks"`
}

// TopURL is a dashboard row. UniqueClicks is not computed and stays 0.
type TopURL struct {
	ID           uuid.UUID `json:"id"`
	ShortCode    string    `json:"shortCode"`
	Title        string    `json:"title"`
	OriginalURL  string    `json:"originalUrl"`
	Clicks       int64     `json:"clicks"`
	UniqueClicks int64     `json:"uniqueClicks"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CountryStat is a breakdown row for the country dimension.
type CountryStat struct {
	Country    string  `json:"country"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// CityStat is a breakdown row for the city dimension.
type CityStat struct {
	City       string  `json:"city"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// DeviceStat is a breakdown row for the device dimension.
type DeviceStat struct {
	Device     string  `json:"device"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// BrowserStat is a breakdown row for the browser dimension.
type BrowserStat struct {
	Browser    string  `json:"browser"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// ReferrerStat is a breakdown row for referrer domains.
// Referrer and Domain carry the same value.
type ReferrerStat struct {
	Referrer   string  `json:"referrer"`
	Domain     string  `json:"domain"`
	Clicks     int64   `json:"clicks"`
	Percentage float64 `json:"percentage"`
}

// URLAnalytics is the per-link report.
type URLAnalytics struct {
	Period  string     `json:"period"`
	URL     URLInfo    `json:"url"`
	Summary URLSummary `json:"summary"`
	Charts  URLCharts  `json:"charts"`
}

// URLInfo identifies the link a report is about.
type URLInfo struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"shortCode"`
	OriginalURL string    `json:"originalUrl"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
}

// URLSummary holds the headline numbers of a per-link report.
// FirstClick and LastClick are RFC 3339 strings, empty when there were no clicks.
type URLSummary struct {
	TotalClicks     int64   `json:"totalClicks"`
	UniqueClicks    int64   `json:"uniqueClicks"`
	AvgClicksPerDay float64 `json:"avgClicksPerDay"`
	PeakDay         PeakDay `json:"peakDay"`
	FirstClick      string  `json:"firstClick"`
	LastClick       string  `json:"lastClick"`
}

// PeakDay is the calendar day with the most clicks.
type PeakDay struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// URLCharts holds the breakdowns and distributions of a per-link report.
type URLCharts struct {
	ClicksOverTime     []TimeBucket   `json:"clicksOverTime"`
	TopCountries       []CountryStat  `json:"topCountries"`
	TopDevices         []DeviceStat   `json:"topDevices"`
	TopBrowsers        []BrowserStat  `json:"topBrowsers"`
	TopReferrers       []ReferrerStat `json:"topReferrers"`
	HourlyDistribution []HourCount    `json:"hourlyDistribution"`
	WeeklyDistribution []WeekdayCount `json:"weeklyDistribution"`
}

// HourCount is one of exactly 24 hourly buckets.
type HourCount struct {
	Hour   int   `json:"hour"`
	Clicks int64 `json:"clicks"`
}

// WeekdayCount is one of exactly 7 weekday buckets, Sunday first.
type WeekdayCount struct {
	Day    string `json:"day"`
	Clicks int64  `json:"clicks"`
}
