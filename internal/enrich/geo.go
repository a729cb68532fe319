package enrich

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/user/linkpulse/internal/config"
	"go.uber.org/zap"
)

// ErrSkipped is returned for addresses that are never looked up
// (private, loopback, unparsable).
var ErrSkipped = errors.New("address not eligible for geo lookup")

// Location is the result of a geo lookup.
type Location struct {
	Country string
	City    string
}

// ipAPIResponse is the subset of the ip-api.com JSON body we read.
type ipAPIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
}

// GeoClient resolves IP addresses to a country and city over HTTP.
//
// Lookups go through a circuit breaker: after FailureThreshold
// consecutive failures the breaker opens and lookups fail fast for
// OpenTimeout, so a dead geo service costs redirects nothing.
type GeoClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[Location]
}

// NewGeoClient creates a geo client from configuration.
func NewGeoClient(cfg config.GeoConfig, log *zap.Logger) *GeoClient {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker[Location](gobreaker.Settings{
		Name:        "geo-lookup",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &GeoClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      cb,
	}
}

// Lookup resolves ip. Private and loopback addresses return ErrSkipped
// without touching the network or the breaker.
func (g *GeoClient) Lookup(ctx context.Context, ip string) (Location, error) {
	if !isPublicIP(ip) {
		return Location{}, ErrSkipped
	}

	return g.cb.Execute(func() (Location, error) {
		return g.fetch(ctx, ip)
	})
}

func (g *GeoClient) fetch(ctx context.Context, ip string) (Location, error) {
	endpoint := strings.TrimSuffix(g.baseURL, "/") + "/" + url.PathEscape(ip) + "?fields=status,message,country,city"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("failed to build geo request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("failed to decode geo response: %w", err)
	}
	if body.Status != "success" {
		return Location{}, fmt.Errorf("geo lookup failed: %s", body.Message)
	}

	return Location{Country: body.Country, City: body.City}, nil
}

// State exposes the breaker state for /health.
func (g *GeoClient) State() gobreaker.State {
	return g.cb.State()
}

func isPublicIP(raw string) bool {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return false
	}
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}
