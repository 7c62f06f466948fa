// Package filter derives the visible subset of posts from the combination of
// post records and the annotation store.
package filter

import (
	"strings"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

// Spec is the transient, UI-owned set of predicates. Zero values disable a
// predicate, so the zero Spec matches everything. Predicates combine with
// AND; only the category membership predicate is an OR over its own set.
type Spec struct {
	Query           string            `json:"query"`
	TagQuery        string            `json:"tagQuery"`
	LocationQuery   string            `json:"locationQuery"`
	VideosOnly      bool              `json:"videosOnly"`
	NorthstarOnly   bool              `json:"northstarOnly"`
	CategorizedOnly bool              `json:"categorizedOnly"`
	Categories      []domain.Category `json:"categories"`
	HasLocationOnly bool              `json:"hasLocationOnly"`
}

// Apply returns the posts matching spec, preserving input order. Predicates
// are evaluated cheapest-first and short-circuit on the first failure; the
// order has no effect on the boolean result.
func Apply(all []domain.Post, anns annotate.Store, spec Spec) []domain.Post {
	q := strings.ToLower(strings.TrimSpace(spec.Query))
	locQ := strings.ToLower(strings.TrimSpace(spec.LocationQuery))
	tagQ := strings.ToLower(strings.TrimSpace(spec.TagQuery))

	matched := make([]domain.Post, 0, len(all))
	for _, post := range all {
		if spec.VideosOnly && !post.IsVideo {
			continue
		}

		ann := anns[post.ID]
		if spec.NorthstarOnly && !ann.Flags[domain.FlagNorthstar] {
			continue
		}
		if tagQ != "" {
			hay := strings.ToLower(strings.Join(ann.Tags, " "))
			if !strings.Contains(hay, tagQ) {
				continue
			}
		}
		if spec.CategorizedOnly && len(ann.Categories) == 0 {
			continue
		}
		if len(spec.Categories) > 0 && !intersects(ann.Categories, spec.Categories) {
			continue
		}

		if spec.HasLocationOnly && !post.HasLocation() {
			continue
		}
		if locQ != "" {
			hay := strings.ToLower(post.LocationName + " " + post.LocationCity + " " + post.LocationRegion)
			if !strings.Contains(hay, locQ) {
				continue
			}
		}

		if q != "" && !matchesQuery(post, q) {
			continue
		}

		matched = append(matched, post)
	}
	return matched
}

// matchesQuery reports whether any of the post's searchable text fields
// contains the (already lower-cased) query substring.
func matchesQuery(post domain.Post, q string) bool {
	haystacks := []string{
		post.CaptionText,
		post.OwnerUsername,
		post.Shortcode,
		strings.Join(post.Hashtags, " "),
		post.LocationName,
		post.LocationCity,
		post.LocationRegion,
	}
	for _, hay := range haystacks {
		if strings.Contains(strings.ToLower(hay), q) {
			return true
		}
	}
	return false
}

func intersects(have, want []domain.Category) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
