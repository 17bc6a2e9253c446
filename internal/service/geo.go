package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Location is a best-effort geographic resolution of a client IP.
// Every field is nullable; an unresolvable IP yields the zero Location.
type Location struct {
	Country   *string
	City      *string
	Continent *string
	Latitude  *float64
	Longitude *float64
}

// Merge overlays an override onto a base location field by field; non-nil
// override fields win. Edge-network headers take precedence over IP lookup.
func (l Location) Merge(override Location) Location {
	out := l
	if override.Country != nil {
		out.Country = override.Country
	}
	if override.City != nil {
		out.City = override.City
	}
	if override.Continent != nil {
		out.Continent = override.Continent
	}
	if override.Latitude != nil {
		out.Latitude = override.Latitude
	}
	if override.Longitude != nil {
		out.Longitude = override.Longitude
	}
	return out
}

// GeoProvider looks up the geography of an IP address.
type GeoProvider interface {
	// Available reports whether the provider is configured to do lookups.
	Available() bool
	Lookup(ctx context.Context, ip string) (Location, error)
}

// NoopGeoProvider is the fallback used when no lookup endpoint is
// configured. It always reports unknown geography.
type NoopGeoProvider struct{}

func (NoopGeoProvider) Available() bool { return false }

func (NoopGeoProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	return Location{}, nil
}

// HTTPGeoProvider resolves IPs against a JSON lookup endpoint. Lookups run
// behind a circuit breaker so a slow or failing provider degrades to
// unknowns instead of stalling the redirect path.
type HTTPGeoProvider struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// NewHTTPGeoProvider creates a provider querying endpoint/{ip}.
func NewHTTPGeoProvider(endpoint string, timeout time.Duration) *HTTPGeoProvider {
	return &HTTPGeoProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "geo-lookup",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (p *HTTPGeoProvider) Available() bool { return p.endpoint != "" }

type geoLookupResponse struct {
	Country   *string  `json:"country"`
	City      *string  `json:"city"`
	Continent *string  `json:"continent"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p *HTTPGeoProvider) Lookup(ctx context.Context, ip string) (Location, error) {
	if net.ParseIP(ip) == nil {
		return Location{}, fmt.Errorf("malformed ip %q", ip)
	}

	result, err := p.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/"+ip, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("geo lookup status %d", resp.StatusCode)
		}
		var body geoLookupResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, err
		}
		return Location{
			Country:   body.Country,
			City:      body.City,
			Continent: body.Continent,
			Latitude:  body.Latitude,
			Longitude: body.Longitude,
		}, nil
	})
	if err != nil {
		return Location{}, err
	}
	return result.(Location), nil
}

// GeoResolver turns provider lookups into never-failing enrichment.
type GeoResolver struct {
	provider GeoProvider
	logger   *slog.Logger
}

// NewGeoResolver creates a resolver over the given provider.
func NewGeoResolver(provider GeoProvider, logger *slog.Logger) *GeoResolver {
	return &GeoResolver{provider: provider, logger: logger}
}

// Resolve returns the geography for an IP. Lookup failures of any kind
// (unconfigured provider, network error, open breaker, malformed IP) yield
// the zero Location, never an error.
func (g *GeoResolver) Resolve(ctx context.Context, ip string) Location {
	if ip == "" || !g.provider.Available() {
		return Location{}
	}
	loc, err := g.provider.Lookup(ctx, ip)
	if err != nil {
		g.logger.DebugContext(ctx, "geo lookup failed",
			slog.String("error", err.Error()))
		return Location{}
	}
	return loc
}
