// Package insights derives frequency rankings over a scope of post and
// annotation data. Rankings are recomputed from scratch on demand; at
// personal-export scale that is cheaper to get right than incremental
// bookkeeping.
package insights

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ChristinaDay/InstaBoard/internal/annotate"
	"github.com/ChristinaDay/InstaBoard/internal/domain"
)

// Ranking truncation limits. The lens table is never truncated.
const (
	topTermLimit   = 24 // hashtags, caption keywords
	topSourceLimit = 18 // owners, user tags
)

const minKeywordLen = 3

// stopwords drop common English filler plus platform-speak that would
// otherwise dominate every ranking.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by",
		"can", "do", "for", "from", "had", "has", "have", "i", "if", "in",
		"into", "is", "it", "its", "just", "like", "love", "me", "more",
		"my", "no", "not", "of", "on", "or", "our", "out", "so", "that",
		"the", "their", "then", "there", "these", "this", "to", "too",
		"up", "was", "we", "were", "what", "with", "you", "your",
		// platform filler
		"bio", "link", "dm", "shop", "available", "now", "new", "today",
		"soon", "video", "reel", "reels", "post", "ad", "paid", "credit",
		"credits",
	} {
		stopwords[w] = struct{}{}
	}
}

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	nonWordPattern = regexp.MustCompile(`[^a-z0-9_]+`)
	numericPattern = regexp.MustCompile(`^\d+$`)
)

// NormalizeToken reduces a raw token to a comparable form: lower-cased,
// leading hashtag/mention markers and URLs stripped, non-word characters
// removed. May return "".
func NormalizeToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.TrimLeft(token, "#")
	token = strings.TrimLeft(token, "@")
	token = urlPattern.ReplaceAllString(token, "")
	return nonWordPattern.ReplaceAllString(token, "")
}

// Rankings holds the five frequency tables for a scope.
type Rankings struct {
	Hashtags   []domain.CountItem `json:"hashtags"`
	Keywords   []domain.CountItem `json:"keywords"`
	Owners     []domain.CountItem `json:"owners"`
	Tags       []domain.CountItem `json:"tags"`
	Categories []domain.CountItem `json:"categories"`
}

// Aggregate computes the rankings for the given scope of posts combined with
// their annotations. Each table is sorted by descending count, ties broken by
// ascending value so output stays deterministic.
func Aggregate(scope []domain.Post, anns annotate.Store) Rankings {
	var hashtags, keywords, owners, tags []string
	catCounts := make(map[string]int)

	for _, post := range scope {
		if post.OwnerUsername != "" {
			owners = append(owners, strings.ToLower(strings.TrimSpace(post.OwnerUsername)))
		}

		for _, h := range post.Hashtags {
			t := NormalizeToken(h)
			if t == "" {
				continue
			}
			if _, stop := stopwords[t]; stop {
				continue
			}
			hashtags = append(hashtags, t)
		}

		for _, raw := range strings.Fields(post.CaptionText) {
			t := NormalizeToken(raw)
			if len(t) < minKeywordLen {
				continue
			}
			if _, stop := stopwords[t]; stop {
				continue
			}
			if numericPattern.MatchString(t) {
				continue
			}
			keywords = append(keywords, t)
		}

		ann := anns[post.ID]
		for _, t := range ann.Tags {
			if token := NormalizeToken(t); token != "" {
				tags = append(tags, token)
			}
		}
		for _, c := range ann.Categories {
			catCounts[string(c)]++
		}
	}

	return Rankings{
		Hashtags:   countTop(hashtags, topTermLimit),
		Keywords:   countTop(keywords, topTermLimit),
		Owners:     countTop(owners, topSourceLimit),
		Tags:       countTop(tags, topSourceLimit),
		Categories: rank(catCounts, 0),
	}
}

func countTop(values []string, limit int) []domain.CountItem {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	return rank(counts, limit)
}

// rank turns a count map into a sorted table. limit 0 means no truncation.
func rank(counts map[string]int, limit int) []domain.CountItem {
	items := make([]domain.CountItem, 0, len(counts))
	for value, count := range counts {
		items = append(items, domain.CountItem{Value: value, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Value < items[j].Value
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
