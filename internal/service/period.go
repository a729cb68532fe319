package service

import "time"

// Period is a rolling analytics lookback window.
type Period struct {
	Token string
	Days  int
}

// DefaultPeriod is used when no period or an unknown one is requested.
var DefaultPeriod = Period{Token: "30d", Days: 30}

var periods = map[string]Period{
	"7d":  {Token: "7d", Days: 7},
	"30d": DefaultPeriod,
	"90d": {Token: "90d", Days: 90},
	"1y":  {Token: "1y", Days: 365},
}

// ParsePeriod resolves a period token. Unknown tokens fall back to 30d
// instead of failing.
func ParsePeriod(token string) Period {
	if p, ok := periods[token]; ok {
		return p
	}
	return DefaultPeriod
}

// Length is the window length.
func (p Period) Length() time.Duration {
	return time.Duration(p.Days) * 24 * time.Hour
}

// Weekly reports whether time series for this period use week buckets.
func (p Period) Weekly() bool {
	return p.Days > 30
}

// window is a resolved period: [Start, Now) is the current window and
// [PreviousStart, Start) the one before it, of equal length.
type window struct {
	Now           time.Time
	Start         time.Time
	PreviousStart time.Time
}

func (p Period) window(now time.Time) window {
	start := now.Add(-p.Length())
	return window{
		Now:           now,
		Start:         start,
		PreviousStart: start.Add(-p.Length()),
	}
}
