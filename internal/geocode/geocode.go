// Package geocode resolves free-text location labels to coordinates through
// a Nominatim-compatible endpoint. It is a collaborator of the map view and
// never touches annotation data.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// DefaultThrottle is the courtesy delay between lookups against a shared
// public endpoint.
const DefaultThrottle = 850 * time.Millisecond

// LocationKey derives the lookup key for a post: city and region when
// present, otherwise the venue name. Returns "" for posts without location
// labels.
func LocationKey(p domain.Post) string {
	parts := make([]string, 0, 2)
	if p.LocationCity != "" {
		parts = append(parts, p.LocationCity)
	}
	if p.LocationRegion != "" {
		parts = append(parts, p.LocationRegion)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	return p.LocationName
}

// Client queries a Nominatim-compatible search endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// NewClient creates a Client. baseURL falls back to the public instance;
// userAgent identifies this tool to the service, as its usage policy asks.
func NewClient(baseURL, userAgent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
	}
}

// Lookup resolves a single location label. The second return is false when
// the service has no match for the query.
func (c *Client) Lookup(ctx context.Context, query string) (domain.LatLng, bool, error) {
	u := fmt.Sprintf("%s/search?format=json&limit=1&q=%s", c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.LatLng{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.LatLng{}, false, fmt.Errorf("geocode %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.LatLng{}, false, fmt.Errorf("geocode %q: status %d", query, resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.LatLng{}, false, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return domain.LatLng{}, false, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return domain.LatLng{}, false, nil
	}
	return domain.LatLng{Lat: lat, Lng: lng}, true, nil
}

// Cache persists resolved coordinates so partial progress survives
// cancellation and restarts.
type Cache interface {
	GeocodeGet(location string) (domain.LatLng, bool)
	GeocodePut(location string, pt domain.LatLng) error
}

// Resolver works through location labels one at a time, throttled, writing
// each result to the cache as it arrives.
type Resolver struct {
	client  *Client
	cache   Cache
	limiter *rate.Limiter
}

// NewResolver creates a Resolver. every is the minimum delay between
// lookups; zero disables throttling (tests).
func NewResolver(client *Client, cache Cache, every time.Duration) *Resolver {
	return &Resolver{
		client:  client,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

// Resolve looks up every uncached location in order. It stops early when ctx
// is cancelled; results already fetched stay cached. Individual lookup
// failures are logged and skipped; a missing marker is not worth failing
// the run.
func (r *Resolver) Resolve(ctx context.Context, locations []string) error {
	for _, loc := range locations {
		if loc == "" {
			continue
		}
		if _, ok := r.cache.GeocodeGet(loc); ok {
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}

		pt, found, err := r.client.Lookup(ctx, loc)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("geocode lookup failed", "location", loc, "error", err)
			continue
		}
		if !found {
			continue
		}
		if err := r.cache.GeocodePut(loc, pt); err != nil {
			slog.Warn("cache geocode result", "location", loc, "error", err)
		}
	}
	return nil
}
