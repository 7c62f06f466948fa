// Package posts ingests the saved-post index CSV into Post records. The rest
// of the application treats those records as an immutable, externally-owned
// data source.
package posts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

// Default index filenames, in preference order. The enriched variant carries
// the optional location columns.
const (
	IndexWithLocation = "saved_index_with_location.csv"
	IndexPlain        = "saved_index.csv"
)

// FindIndex returns the preferred index file under dir, falling back from the
// location-enriched variant to the plain one.
func FindIndex(dir string) (string, error) {
	for _, name := range []string{IndexWithLocation, IndexPlain} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no saved index found in %s (looked for %s, %s)", dir, IndexWithLocation, IndexPlain)
}

// Load reads the index CSV at path and returns normalized Post records in
// file order.
func Load(path string) ([]domain.Post, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()

	posts, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return posts, nil
}

// Parse reads index CSV rows from r. The first row is the header; rows are
// keyed by column name so the optional location and my_* columns may be
// absent entirely.
func Parse(r io.Reader) ([]domain.Post, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	var posts []domain.Post
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if isBlankRow(record) {
			continue
		}
		posts = append(posts, normalizeRow(field))
	}
	return posts, nil
}

func normalizeRow(field func(string) string) domain.Post {
	id := field("shortcode")
	if id == "" {
		id = field("json_filename")
	}
	if id == "" {
		// A row with neither shortcode nor source filename still needs an
		// identifier so its annotations stay addressable this session.
		id = uuid.NewString()
	}

	var takenAt *time.Time
	if ts, err := time.Parse(time.RFC3339, field("taken_at_iso")); err == nil {
		takenAt = &ts
	}

	return domain.Post{
		ID:                   id,
		Shortcode:            field("shortcode"),
		PostURL:              field("post_url"),
		TakenAt:              takenAt,
		OwnerUsername:        field("owner_username"),
		OwnerFullName:        field("owner_full_name"),
		OwnerID:              field("owner_id"),
		IsVideo:              toBool(field("is_video")),
		VideoDurationSeconds: toFloat(field("video_duration")),
		HasAudio:             toBool(field("has_audio")),
		LikeCount:            toInt(field("like_count")),
		CommentCount:         toInt(field("comment_count")),
		VideoViewCount:       toInt(field("video_view_count")),
		MusicArtist:          field("music_artist"),
		MusicTrack:           field("music_track"),
		UsesOriginalAudio:    toBool(field("uses_original_audio")),
		CaptionText:          field("caption_text"),
		Hashtags:             splitList(field("hashtags"), hashtagSeparators),
		MediaFiles:           mediaFiles(field("media_files")),
		LocationName:         field("location_name"),
		LocationCity:         field("location_city"),
		LocationRegion:       field("location_region"),
		MyTags:               splitList(field("my_tags"), listSeparators),
		MyNotes:              field("my_notes"),
		MyNorthstar:          toBool(field("my_northstar")),
		MyLenses:             splitList(field("my_lenses"), listSeparators),
	}
}

// SeedAnnotations synthesizes annotation records from the legacy my_* index
// columns. Posts with no annotation content are skipped. Used once per
// session to seed an empty annotation store; merging is the store's job.
func SeedAnnotations(all []domain.Post) annotate.Store {
	seed := annotate.Store{}
	for _, p := range all {
		if len(p.MyTags) == 0 && strings.TrimSpace(p.MyNotes) == "" && !p.MyNorthstar && len(p.MyLenses) == 0 {
			continue
		}
		seed[p.ID] = domain.Annotation{
			PostID:     p.ID,
			Tags:       p.MyTags,
			Notes:      p.MyNotes,
			Flags:      map[string]bool{domain.FlagNorthstar: p.MyNorthstar},
			Categories: annotate.NormalizeCategories(p.MyLenses),
		}
	}
	return seed
}

var (
	hashtagSeparators = regexp.MustCompile(`[,\s]+`)
	listSeparators    = regexp.MustCompile(`[;,]`)
)

func splitList(raw string, sep *regexp.Regexp) []string {
	var out []string
	for _, part := range sep.Split(raw, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mediaFiles splits the media list and drops sidecar text/metadata files.
func mediaFiles(raw string) []string {
	var out []string
	for _, name := range splitList(raw, listSeparators) {
		lower := strings.ToLower(name)
		if strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".json") || strings.HasSuffix(lower, ".json.xz") {
			continue
		}
		out = append(out, name)
	}
	return out
}

func toBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func toFloat(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func toInt(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
