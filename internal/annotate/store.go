// Package annotate holds the annotation store and its mutation primitives.
//
// The store maps post id to at most one annotation record. All mutations are
// copy-on-write: the input store is never modified, callers get a fresh map
// value back. None of the operations fail on malformed input; they degrade to
// no-ops or empty results, since a local curation tool has no recovery path
// to offer the user.
package annotate

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

// Store maps post id to its annotation record.
type Store map[string]domain.Annotation

// Patch is a partial annotation update. Nil fields are left unchanged;
// non-nil fields replace, except Flags which is shallow-merged onto the
// existing flag map (patch keys overwrite, other keys survive).
type Patch struct {
	Tags       []string
	Notes      *string
	Flags      map[string]bool
	Categories []string
}

// Upsert applies a partial update to the record for postID, creating the
// record if it does not exist. Tags are normalized, deduplicated and sorted;
// categories are validated against the lens enumeration. UpdatedAt is bumped
// on every call, even when the resulting record is otherwise unchanged.
func Upsert(s Store, postID string, p Patch) Store {
	cur, exists := s[postID]

	rawTags := p.Tags
	if rawTags == nil && exists {
		rawTags = cur.Tags
	}
	tagSet := make(map[string]bool, len(rawTags))
	for _, t := range rawTags {
		if n := NormalizeTag(t); n != "" {
			tagSet[n] = true
		}
	}
	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	rawCats := p.Categories
	if rawCats == nil && exists {
		rawCats = categoryStrings(cur.Categories)
	}

	notes := cur.Notes
	if p.Notes != nil {
		notes = *p.Notes
	}

	flags := make(map[string]bool, len(cur.Flags)+len(p.Flags))
	maps.Copy(flags, cur.Flags)
	maps.Copy(flags, p.Flags)

	next := maps.Clone(s)
	if next == nil {
		next = Store{}
	}
	next[postID] = domain.Annotation{
		PostID:     postID,
		Tags:       tags,
		Notes:      notes,
		Flags:      flags,
		Categories: NormalizeCategories(rawCats),
		UpdatedAt:  time.Now().UTC(),
	}
	return next
}

// AddTag appends a raw tag to the record for postID, creating the record if
// needed. The tag is normalized on the way in, so adding a tag that
// normalizes to an existing one leaves the tag set unchanged (but still
// bumps UpdatedAt, as any upsert does).
func AddTag(s Store, postID, tag string) Store {
	cur := s[postID]
	tags := make([]string, 0, len(cur.Tags)+1)
	tags = append(tags, cur.Tags...)
	tags = append(tags, tag)
	return Upsert(s, postID, Patch{Tags: tags})
}

// RemoveTag removes the normalized form of tag from the record for postID.
// When no record exists the store is returned as-is, not even UpdatedAt is
// touched. That is deliberately asymmetric with AddTag, which does create an
// implicit record.
func RemoveTag(s Store, postID, tag string) Store {
	cur, ok := s[postID]
	if !ok {
		return s
	}
	target := NormalizeTag(tag)
	tags := make([]string, 0, len(cur.Tags))
	for _, t := range cur.Tags {
		if t != target {
			tags = append(tags, t)
		}
	}
	return Upsert(s, postID, Patch{Tags: tags})
}

// BulkAddTag applies AddTag semantics across a batch and reports how many
// posts actually changed. Posts already carrying the normalized tag are
// strict no-ops: no UpdatedAt bump, not counted. A tag that normalizes to
// the empty string makes the whole call a no-op, guarding against an
// accidental empty tag fanning out over many records.
func BulkAddTag(s Store, postIDs []string, tag string) (Store, int) {
	norm := NormalizeTag(tag)
	if norm == "" {
		return s, 0
	}

	next := s
	changed := 0
	for _, postID := range postIDs {
		cur := next[postID]
		if slices.Contains(cur.Tags, norm) {
			continue
		}
		tags := make([]string, 0, len(cur.Tags)+1)
		tags = append(tags, cur.Tags...)
		tags = append(tags, norm)
		next = Upsert(next, postID, Patch{Tags: tags})
		changed++
	}
	return next, changed
}

// AllTags returns every tag present across all records, sorted.
func AllTags(s Store) []string {
	set := make(map[string]bool)
	for _, ann := range s {
		for _, t := range ann.Tags {
			set[t] = true
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// MergeSeed adds seed records for post ids that have no record yet. Existing
// records are never overwritten. Seed values pass through Upsert, so they are
// normalized like any other mutation.
func MergeSeed(s Store, seed Store) Store {
	next := s
	for _, postID := range sortedKeys(seed) {
		if _, ok := next[postID]; ok {
			continue
		}
		ann := seed[postID]
		notes := ann.Notes
		next = Upsert(next, postID, Patch{
			Tags:       ann.Tags,
			Notes:      &notes,
			Flags:      ann.Flags,
			Categories: categoryStrings(ann.Categories),
		})
	}
	return next
}

func categoryStrings(cats []domain.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

func sortedKeys(s Store) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
