package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

type memCache struct {
	m map[string]domain.LatLng
}

func newMemCache() *memCache { return &memCache{m: map[string]domain.LatLng{}} }

func (c *memCache) GeocodeGet(loc string) (domain.LatLng, bool) {
	pt, ok := c.m[loc]
	return pt, ok
}

func (c *memCache) GeocodePut(loc string, pt domain.LatLng) error {
	c.m[loc] = pt
	return nil
}

func TestLocationKey(t *testing.T) {
	tests := []struct {
		name string
		post domain.Post
		want string
	}{
		{"city and region", domain.Post{LocationCity: "Portland", LocationRegion: "Oregon"}, "Portland, Oregon"},
		{"city only", domain.Post{LocationCity: "Portland"}, "Portland"},
		{"name fallback", domain.Post{LocationName: "Some Studio"}, "Some Studio"},
		{"city wins over name", domain.Post{LocationCity: "Portland", LocationName: "Some Studio"}, "Portland"},
		{"nothing", domain.Post{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocationKey(tt.post))
		})
	}
}

func TestClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "instaboard-test", r.Header.Get("User-Agent"))

		switch r.URL.Query().Get("q") {
		case "Paris, France":
			w.Write([]byte(`[{"lat":"48.8566","lon":"2.3522"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "instaboard-test")

	pt, found, err := c.Lookup(context.Background(), "Paris, France")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 48.8566, pt.Lat, 1e-9)
	assert.InDelta(t, 2.3522, pt.Lng, 1e-9)

	_, found, err = c.Lookup(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClientLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, _, err := c.Lookup(context.Background(), "x")
	assert.Error(t, err)
}

func TestResolverSkipsCached(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	cache := newMemCache()
	cache.GeocodePut("cached", domain.LatLng{Lat: 9, Lng: 9})

	r := NewResolver(NewClient(srv.URL, ""), cache, 0)
	err := r.Resolve(context.Background(), []string{"cached", "fresh", ""})
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "cached and empty labels never hit the service")
	pt, ok := cache.GeocodeGet("fresh")
	require.True(t, ok)
	assert.Equal(t, domain.LatLng{Lat: 1, Lng: 2}, pt)
	pt, _ = cache.GeocodeGet("cached")
	assert.Equal(t, domain.LatLng{Lat: 9, Lng: 9}, pt, "cached value untouched")
}

func TestResolverStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cache := newMemCache()
	r := NewResolver(NewClient(srv.URL, ""), cache, 0)
	err := r.Resolve(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cache.m, "no results fetched after cancellation")
}

func TestResolverContinuesPastLookupFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	cache := newMemCache()
	r := NewResolver(NewClient(srv.URL, ""), cache, 0)
	require.NoError(t, r.Resolve(context.Background(), []string{"bad", "good"}))

	_, ok := cache.GeocodeGet("bad")
	assert.False(t, ok)
	_, ok = cache.GeocodeGet("good")
	assert.True(t, ok)
}
