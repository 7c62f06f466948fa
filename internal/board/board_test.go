package board

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
	"github.com/ChristinaDay/InstaBoard/internal/filter"
	"github.com/ChristinaDay/InstaBoard/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "instaboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testPosts() []domain.Post {
	return []domain.Post{
		{ID: "p1", Shortcode: "p1", IsVideo: true, CaptionText: "neon build", OwnerUsername: "maker", LocationCity: "Portland", LocationRegion: "Oregon"},
		{ID: "p2", Shortcode: "p2", CaptionText: "gallery night", OwnerUsername: "curator"},
	}
}

func TestMutationsPersistAcrossSessions(t *testing.T) {
	db := openTestDB(t)

	b := New(db)
	b.Hydrate(testPosts())
	b.AddTag("p1", "Neon Art")
	b.Upsert("p2", annotate.Patch{Flags: map[string]bool{domain.FlagNorthstar: true}})

	// Fresh board over the same database sees the same store.
	b2 := New(db)
	b2.Hydrate(testPosts())
	ann, ok := b2.Get("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"neon_art"}, ann.Tags)
	ann, _ = b2.Get("p2")
	assert.True(t, ann.Flags[domain.FlagNorthstar])
}

func TestSaveBeforeHydrationDoesNotClobber(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveAnnotations(annotate.AddTag(annotate.Store{}, "p1", "precious")))

	b := New(db)
	b.AddTag("p9", "early") // before Hydrate: kept in memory, not persisted

	loaded := db.LoadAnnotations()
	require.Contains(t, loaded, "p1", "persisted data survived the early mutation")
	assert.NotContains(t, loaded, "p9")
}

func TestSeedRunsOnlyIntoEmptyStore(t *testing.T) {
	db := openTestDB(t)

	seeded := []domain.Post{
		{ID: "p1", MyTags: []string{"Seeded"}, MyNorthstar: true},
		{ID: "p2"},
	}

	b := New(db)
	b.Hydrate(seeded)
	ann, ok := b.Get("p1")
	require.True(t, ok)
	assert.Equal(t, []string{"seeded"}, ann.Tags)
	assert.True(t, ann.Flags[domain.FlagNorthstar])
	_, ok = b.Get("p2")
	assert.False(t, ok, "posts without annotation columns get no record")

	// A non-empty store must never be reseeded or overwritten.
	b.RemoveTag("p1", "seeded")
	b2 := New(db)
	b2.Hydrate(seeded)
	ann, _ = b2.Get("p1")
	assert.Empty(t, ann.Tags)
}

func TestRemoveTagWithoutRecordSkipsSave(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())

	b.RemoveTag("missing", "x")
	_, ok := b.Get("missing")
	assert.False(t, ok, "no implicit record created")
}

func TestBulkAddTag(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())
	b.AddTag("p1", "shared")

	changed := b.BulkAddTag([]string{"p1", "p2"}, "Shared")
	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"shared", "shared"}, func() []string {
		a1, _ := b.Get("p1")
		a2, _ := b.Get("p2")
		return []string{a1.Tags[0], a2.Tags[0]}
	}())

	assert.Zero(t, b.BulkAddTag([]string{"p1", "p2"}, "   "))
}

func TestFilterAndInsights(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())
	b.AddTag("p1", "x")

	got := b.Filter(filter.Spec{VideosOnly: true, TagQuery: "x"})
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)

	rankings, count := b.Insights(filter.Spec{VideosOnly: true}, "filtered")
	assert.Equal(t, 1, count)
	assert.Equal(t, []domain.CountItem{{Value: "x", Count: 1}}, rankings.Tags)

	_, count = b.Insights(filter.Spec{VideosOnly: true}, "all")
	assert.Equal(t, 2, count, "all scope ignores the filter")
}

func TestExportImportRoundTrip(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())
	b.AddTag("p1", "art")

	data, err := b.ExportJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ", "export is pretty-printed")

	var parsed map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Contains(t, parsed, "p1")

	// Import replaces wholesale.
	b.AddTag("p2", "extra")
	require.NoError(t, b.ImportJSON(data))
	_, ok := b.Get("p2")
	assert.False(t, ok)
	ann, _ := b.Get("p1")
	assert.Equal(t, []string{"art"}, ann.Tags)
}

func TestImportRejectsMalformedPayload(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())
	b.AddTag("p1", "keep")

	err := b.ImportJSON([]byte("{broken"))
	require.Error(t, err)
	ann, _ := b.Get("p1")
	assert.Equal(t, []string{"keep"}, ann.Tags, "failed import leaves the store alone")
}

func TestMarkersAndLocations(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())

	locs := b.Locations(filter.Spec{})
	assert.Equal(t, []string{"Portland, Oregon"}, locs)

	markers, labeled := b.Markers(filter.Spec{})
	assert.Equal(t, 1, labeled)
	assert.Empty(t, markers, "no marker until the label is geocoded")

	require.NoError(t, db.GeocodePut("Portland, Oregon", domain.LatLng{Lat: 45.5, Lng: -122.6}))
	markers, labeled = b.Markers(filter.Spec{})
	assert.Equal(t, 1, labeled)
	require.Len(t, markers, 1)
	assert.Equal(t, "Portland, Oregon", markers[0].Location)
	assert.Equal(t, []string{"p1"}, markers[0].PostIDs)
}

func TestReplacePosts(t *testing.T) {
	db := openTestDB(t)
	b := New(db)
	b.Hydrate(testPosts())
	b.AddTag("p1", "kept")

	b.ReplacePosts([]domain.Post{{ID: "p3", Shortcode: "p3"}})
	assert.Len(t, b.Posts(), 1)
	ann, ok := b.Get("p1")
	require.True(t, ok, "annotations survive a post reload, even dangling ones")
	assert.Equal(t, []string{"kept"}, ann.Tags)
}
