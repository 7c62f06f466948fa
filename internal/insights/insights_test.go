package insights

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#Art", "art"},
		{"##neon", "neon"},
		{"@someone", "someone"},
		{"https://example.com/x", ""},
		{"mixed-case_Word!", "mixedcase_word"},
		{"  spaced  ", "spaced"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeToken(tt.in), "input %q", tt.in)
	}
}

func TestAggregateHashtags(t *testing.T) {
	scope := []domain.Post{
		{ID: "p1", Hashtags: []string{"#Art", "#the"}},
		{ID: "p2", Hashtags: []string{"#art"}},
		{ID: "p3", Hashtags: []string{"#art"}},
	}

	r := Aggregate(scope, annotate.Store{})
	require.NotEmpty(t, r.Hashtags)
	assert.Equal(t, domain.CountItem{Value: "art", Count: 3}, r.Hashtags[0], "case-folded and merged")
	for _, item := range r.Hashtags {
		assert.NotEqual(t, "the", item.Value, "stop-words never appear")
	}
}

func TestAggregateKeywords(t *testing.T) {
	scope := []domain.Post{
		{ID: "p1", CaptionText: "Neon neon sign at 42 the a it"},
	}

	r := Aggregate(scope, annotate.Store{})
	values := map[string]int{}
	for _, item := range r.Keywords {
		values[item.Value] = item.Count
	}
	assert.Equal(t, 2, values["neon"])
	assert.Equal(t, 1, values["sign"])
	assert.NotContains(t, values, "42", "purely numeric tokens dropped")
	assert.NotContains(t, values, "at", "short tokens dropped")
	assert.NotContains(t, values, "the", "stop-words dropped")
}

func TestAggregateOwnersAndTags(t *testing.T) {
	anns := annotate.AddTag(annotate.Store{}, "p1", "Nail Art")
	anns = annotate.AddTag(anns, "p2", "nail_art")

	scope := []domain.Post{
		{ID: "p1", OwnerUsername: "Maker"},
		{ID: "p2", OwnerUsername: "maker"},
		{ID: "p3"},
	}

	r := Aggregate(scope, anns)
	assert.Equal(t, []domain.CountItem{{Value: "maker", Count: 2}}, r.Owners)
	assert.Equal(t, []domain.CountItem{{Value: "nail_art", Count: 2}}, r.Tags)
}

func TestAggregateCategories(t *testing.T) {
	anns := annotate.Upsert(annotate.Store{}, "p1", annotate.Patch{Categories: []string{"production", "skill_building"}})
	anns = annotate.Upsert(anns, "p2", annotate.Patch{Categories: []string{"production"}})

	scope := []domain.Post{{ID: "p1"}, {ID: "p2"}}
	r := Aggregate(scope, anns)
	assert.Equal(t, []domain.CountItem{
		{Value: "production", Count: 2},
		{Value: "skill_building", Count: 1},
	}, r.Categories)
}

func TestTieBreakIsLexicographic(t *testing.T) {
	scope := []domain.Post{
		{ID: "p1", Hashtags: []string{"#zebra", "#apple"}},
	}

	r := Aggregate(scope, annotate.Store{})
	require.Len(t, r.Hashtags, 2)
	assert.Equal(t, "apple", r.Hashtags[0].Value, "equal counts order by ascending value")
	assert.Equal(t, "zebra", r.Hashtags[1].Value)
}

func TestTruncation(t *testing.T) {
	var scope []domain.Post
	for i := 0; i < 30; i++ {
		scope = append(scope, domain.Post{
			ID:            fmt.Sprintf("p%02d", i),
			Hashtags:      []string{fmt.Sprintf("#tag%02d", i)},
			OwnerUsername: fmt.Sprintf("owner%02d", i),
		})
	}

	r := Aggregate(scope, annotate.Store{})
	assert.Len(t, r.Hashtags, 24)
	assert.Len(t, r.Owners, 18)
}

func TestDanglingAnnotationsIgnored(t *testing.T) {
	// Annotations for posts outside the scope contribute nothing.
	anns := annotate.AddTag(annotate.Store{}, "gone", "orphan_tag")
	r := Aggregate([]domain.Post{{ID: "p1"}}, anns)
	assert.Empty(t, r.Tags)
}
