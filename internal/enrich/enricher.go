// ===========================================
// Package enrich - Visitor Enrichment
// ===========================================
// Derives country, city, device, browser and OS for a click from the
// visitor's IP address and User-Agent header. Enrichment is best
// effort: any failure leaves the affected fields empty and never
// blocks a redirect.
// ===========================================

package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/user/linkpulse/internal/metrics"
	"go.uber.org/zap"
)

// geoTimeout bounds one geo lookup inside Enrich.
const geoTimeout = time.Second

// Visitor holds the derived attributes of one click.
type Visitor struct {
	Country string
	City    string
	Device  string
	Browser string
	OS      string
}

// GeoLookup resolves an IP address to a location.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Enricher combines user-agent parsing with an optional geo lookup.
type Enricher struct {
	geo GeoLookup
	log *zap.Logger
}

// NewEnricher creates an enricher. geo may be nil to disable lookups.
func NewEnricher(geo GeoLookup, log *zap.Logger) *Enricher {
	return &Enricher{geo: geo, log: log}
}

// Enrich derives visitor attributes. It never returns an error.
func (e *Enricher) Enrich(ctx context.Context, ip, userAgent string) Visitor {
	var v Visitor
	v.Device, v.Browser, v.OS = ParseUserAgent(userAgent)

	if e.geo == nil {
		return v
	}

	ctx, cancel := context.WithTimeout(ctx, geoTimeout)
	defer cancel()

	loc, err := e.geo.Lookup(ctx, ip)
	switch {
	case err == nil:
		v.Country, v.City = loc.Country, loc.City
	case errors.Is(err, ErrSkipped):
	default:
		metrics.EnrichmentFailures.WithLabelValues("geo").Inc()
		e.log.Debug("Geo lookup failed", zap.String("ip", ip), zap.Error(err))
	}

	return v
}
