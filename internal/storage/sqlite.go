// Package storage persists the annotation store and the geocode cache to a
// local SQLite file. The annotation store lives as a JSON blob under a
// versioned key, mirroring the storage generations the frontend used before
// this backend existed.
package storage

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

//go:embed schema.sql
var schema string

// Storage generations. Loads read v2 first and fall back to migrating v1.
// Migration writes forward to v2 only; the v1 value is never touched.
const (
	legacyAnnotationsKey  = "instaboard_annotations_v1"
	currentAnnotationsKey = "instaboard_annotations_v2"
)

// DB handles database operations
type DB struct {
	db *sql.DB
}

// Open creates a DB backed by the SQLite file at path
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// legacyAnnotation is the v1 record layout, decoded leniently: any missing
// field falls back to a default and categories did not exist yet.
type legacyAnnotation struct {
	Tags      []string        `json:"tags"`
	Notes     string          `json:"notes"`
	Flags     map[string]bool `json:"flags"`
	UpdatedAt string          `json:"updatedAt"`
}

// LoadAnnotations reads the annotation store. The current-generation value is
// returned as stored; a legacy-generation value is migrated forward and
// persisted under the current key first. A missing or unparseable value of
// either generation yields an empty store; load never fails, local
// annotation data favors availability over validation.
func (d *DB) LoadAnnotations() annotate.Store {
	if raw, ok := d.getValue(currentAnnotationsKey); ok {
		var store annotate.Store
		if err := json.Unmarshal([]byte(raw), &store); err != nil {
			slog.Warn("annotation store unreadable, starting empty", "key", currentAnnotationsKey, "error", err)
			return annotate.Store{}
		}
		if store == nil {
			store = annotate.Store{}
		}
		return store
	}

	raw, ok := d.getValue(legacyAnnotationsKey)
	if !ok {
		return annotate.Store{}
	}

	var legacy map[string]legacyAnnotation
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		slog.Warn("legacy annotation store unreadable, starting empty", "key", legacyAnnotationsKey, "error", err)
		return annotate.Store{}
	}

	migrated := make(annotate.Store, len(legacy))
	for postID, old := range legacy {
		tags := old.Tags
		if tags == nil {
			tags = []string{}
		}
		flags := old.Flags
		if flags == nil {
			flags = map[string]bool{}
		}
		updatedAt := time.Now().UTC()
		if ts, err := time.Parse(time.RFC3339, old.UpdatedAt); err == nil {
			updatedAt = ts
		}
		migrated[postID] = domain.Annotation{
			PostID:     postID,
			Tags:       tags,
			Notes:      old.Notes,
			Flags:      flags,
			Categories: []domain.Category{},
			UpdatedAt:  updatedAt,
		}
	}

	if err := d.SaveAnnotations(migrated); err != nil {
		slog.Warn("persist migrated annotations", "error", err)
	} else {
		slog.Info("migrated annotation store", "from", legacyAnnotationsKey, "to", currentAnnotationsKey, "records", len(migrated))
	}
	return migrated
}

// SaveAnnotations writes the store under the current-generation key.
func (d *DB) SaveAnnotations(store annotate.Store) error {
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}
	return d.putValue(currentAnnotationsKey, string(data))
}

// GeocodeGet looks up a cached coordinate for a location label.
func (d *DB) GeocodeGet(location string) (domain.LatLng, bool) {
	var pt domain.LatLng
	err := d.db.QueryRow(
		"SELECT lat, lng FROM geocode_cache WHERE location = ?",
		location,
	).Scan(&pt.Lat, &pt.Lng)
	if err == sql.ErrNoRows {
		return domain.LatLng{}, false
	}
	if err != nil {
		slog.Warn("read geocode cache", "location", location, "error", err)
		return domain.LatLng{}, false
	}
	return pt, true
}

// GeocodePut stores a resolved coordinate for a location label.
func (d *DB) GeocodePut(location string, pt domain.LatLng) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO geocode_cache (location, lat, lng, resolved_at) VALUES (?, ?, ?, ?)",
		location, pt.Lat, pt.Lng, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	return nil
}

func (d *DB) getValue(key string) (string, bool) {
	var value string
	err := d.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		slog.Warn("read storage key", "key", key, "error", err)
		return "", false
	}
	return value, true
}

func (d *DB) putValue(key, value string) error {
	_, err := d.db.Exec(
		"INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write storage key %s: %w", key, err)
	}
	return nil
}
