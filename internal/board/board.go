// Package board holds the running session's state: the ingested posts, the
// annotation store, and the persistence pipeline between them. It is the one
// place that mutates the store; everything it hands out is a copy-on-write
// snapshot, so callers can compare snapshots by reference to detect change.
package board

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
	"github.com/ChristinaDay/InstaBoard/internal/filter"
	"github.com/ChristinaDay/InstaBoard/internal/geocode"
	"github.com/ChristinaDay/InstaBoard/internal/insights"
	"github.com/ChristinaDay/InstaBoard/internal/posts"
	"github.com/ChristinaDay/InstaBoard/internal/storage"
)

// Board is the session state container.
type Board struct {
	mu       sync.Mutex
	db       *storage.DB
	posts    []domain.Post
	store    annotate.Store
	hydrated bool
}

// New creates a Board over the given storage. The store starts empty until
// Hydrate runs; mutations before that are kept in memory but not persisted,
// so an early save can never clobber real data with the empty default.
func New(db *storage.DB) *Board {
	return &Board{db: db, store: annotate.Store{}}
}

// Hydrate loads the persisted annotation store and installs the post
// records. When the loaded store is empty and the index carries legacy
// annotation columns, those are merged in as a one-time seed.
func (b *Board) Hydrate(all []domain.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.posts = all
	b.store = b.db.LoadAnnotations()
	b.hydrated = true

	if len(b.store) > 0 {
		return
	}
	seed := posts.SeedAnnotations(all)
	if len(seed) == 0 {
		return
	}
	b.store = annotate.MergeSeed(b.store, seed)
	slog.Info("seeded annotations from index columns", "records", len(seed))
	b.persistLocked()
}

// ReplacePosts swaps in a freshly ingested post slice. Annotations are
// untouched; records for posts no longer present simply become unreachable
// until a matching post reappears.
func (b *Board) ReplacePosts(all []domain.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = all
}

// Posts returns the current post records.
func (b *Board) Posts() []domain.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posts
}

// Annotations returns the current store snapshot.
func (b *Board) Annotations() annotate.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store
}

// Get returns the annotation for a post, if any.
func (b *Board) Get(postID string) (domain.Annotation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ann, ok := b.store[postID]
	return ann, ok
}

// Upsert applies a partial annotation update and persists.
func (b *Board) Upsert(postID string, p annotate.Patch) domain.Annotation {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = annotate.Upsert(b.store, postID, p)
	b.persistLocked()
	return b.store[postID]
}

// AddTag adds a tag to a post's annotation and persists.
func (b *Board) AddTag(postID, tag string) domain.Annotation {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = annotate.AddTag(b.store, postID, tag)
	b.persistLocked()
	return b.store[postID]
}

// RemoveTag removes a tag from a post's annotation and persists. Removing
// from a post with no record is a no-op and skips the save.
func (b *Board) RemoveTag(postID, tag string) domain.Annotation {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := annotate.RemoveTag(b.store, postID, tag)
	if _, ok := b.store[postID]; ok {
		b.store = next
		b.persistLocked()
	}
	return b.store[postID]
}

// BulkAddTag applies a tag across a batch and reports how many posts
// actually changed. Nothing is persisted when nothing changed.
func (b *Board) BulkAddTag(postIDs []string, tag string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, changed := annotate.BulkAddTag(b.store, postIDs, tag)
	if changed > 0 {
		b.store = next
		b.persistLocked()
	}
	return changed
}

// AllTags returns every tag in the store, sorted.
func (b *Board) AllTags() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return annotate.AllTags(b.store)
}

// Filter returns the posts matching spec, in index order.
func (b *Board) Filter(spec filter.Spec) []domain.Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	return filter.Apply(b.posts, b.store, spec)
}

// Insights computes the frequency rankings for the given scope: "all" covers
// every post, anything else the filtered subset.
func (b *Board) Insights(spec filter.Spec, scope string) (insights.Rankings, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scopePosts := b.posts
	if scope != "all" {
		scopePosts = filter.Apply(b.posts, b.store, spec)
	}
	return insights.Aggregate(scopePosts, b.store), len(scopePosts)
}

// ExportJSON serializes the whole store, pretty-printed, for download.
func (b *Board) ExportJSON() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(b.store, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal annotations: %w", err)
	}
	return data, nil
}

// ImportJSON replaces the store wholesale with the given payload. This is
// the one operation allowed to fail loudly: the caller asked for a
// destructive replace, so a malformed payload must not be papered over.
func (b *Board) ImportJSON(data []byte) error {
	var imported annotate.Store
	if err := json.Unmarshal(data, &imported); err != nil {
		return fmt.Errorf("parse annotations payload: %w", err)
	}
	if imported == nil {
		imported = annotate.Store{}
	}
	for postID, ann := range imported {
		ann.PostID = postID
		imported[postID] = ann
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.store = imported
	b.persistLocked()
	return nil
}

// Marker is one map pin: a location label, its coordinates, and the posts
// grouped under it.
type Marker struct {
	Location string        `json:"location"`
	Point    domain.LatLng `json:"point"`
	PostIDs  []string      `json:"postIds"`
}

// Markers groups the filtered posts by location label and attaches cached
// coordinates. labeled counts distinct labels in the subset; only labels
// with a cached coordinate produce a marker.
func (b *Board) Markers(spec filter.Spec) (markers []Marker, labeled int) {
	b.mu.Lock()
	subset := filter.Apply(b.posts, b.store, spec)
	b.mu.Unlock()

	groups := make(map[string][]string)
	var order []string
	for _, post := range subset {
		key := geocode.LocationKey(post)
		if key == "" {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], post.ID)
	}

	for _, key := range order {
		pt, ok := b.db.GeocodeGet(key)
		if !ok {
			continue
		}
		markers = append(markers, Marker{Location: key, Point: pt, PostIDs: groups[key]})
	}
	return markers, len(order)
}

// Locations returns the distinct location labels of the filtered subset, in
// first-seen order. This feeds the background geocode resolver.
func (b *Board) Locations(spec filter.Spec) []string {
	b.mu.Lock()
	subset := filter.Apply(b.posts, b.store, spec)
	b.mu.Unlock()

	seen := make(map[string]bool)
	var order []string
	for _, post := range subset {
		key := geocode.LocationKey(post)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		order = append(order, key)
	}
	return order
}

// persistLocked saves the store. Gated on hydration so a save racing the
// initial load cannot overwrite persisted data with the empty default.
// Write failures are logged and swallowed: the in-memory state is already
// updated and the user keeps working.
func (b *Board) persistLocked() {
	if !b.hydrated {
		return
	}
	if err := b.db.SaveAnnotations(b.store); err != nil {
		slog.Warn("persist annotations", "error", err)
	}
}
