package annotate

import (
	"strings"

	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

// Categories is the closed lens enumeration, in canonical order.
var Categories = []domain.Category{
	domain.CategoryDirectionIdentity,
	domain.CategorySkillBuilding,
	domain.CategoryOpportunityHunting,
	domain.CategoryPortfolioPlanning,
	domain.CategoryProduction,
}

// NormalizeTag canonicalizes a free-text tag: trims surrounding whitespace,
// lower-cases, and collapses internal whitespace runs to a single underscore.
// Input that is empty after trimming yields ""; callers must filter that out.
func NormalizeTag(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(trimmed)), "_")
}

// NormalizeCategories filters and dedupes category labels against the closed
// enumeration. Unrecognized values are dropped without error. The result is
// in enumeration order, which keeps output stable for equal input sets.
func NormalizeCategories(values []string) []domain.Category {
	seen := make(map[domain.Category]bool, len(values))
	for _, v := range values {
		c := domain.Category(strings.ToLower(strings.TrimSpace(v)))
		for _, allowed := range Categories {
			if c == allowed {
				seen[c] = true
				break
			}
		}
	}

	out := make([]domain.Category, 0, len(seen))
	for _, c := range Categories {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}
