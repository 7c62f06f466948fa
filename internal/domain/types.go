package domain

import "time"

// Post is one saved post from the ingested index.
// It is produced by the ingestion layer and treated as read-only everywhere else.
type Post struct {
	ID                   string     `json:"id"`
	Shortcode            string     `json:"shortcode"`
	PostURL              string     `json:"postUrl"`
	TakenAt              *time.Time `json:"takenAt,omitempty"`
	OwnerUsername        string     `json:"ownerUsername"`
	OwnerFullName        string     `json:"ownerFullName"`
	OwnerID              string     `json:"ownerId"`
	IsVideo              bool       `json:"isVideo"`
	VideoDurationSeconds float64    `json:"videoDurationSeconds,omitempty"`
	HasAudio             bool       `json:"hasAudio"`
	LikeCount            int        `json:"likeCount,omitempty"`
	CommentCount         int        `json:"commentCount,omitempty"`
	VideoViewCount       int        `json:"videoViewCount,omitempty"`
	MusicArtist          string     `json:"musicArtist,omitempty"`
	MusicTrack           string     `json:"musicTrack,omitempty"`
	UsesOriginalAudio    bool       `json:"usesOriginalAudio"`
	CaptionText          string     `json:"captionText"`
	Hashtags             []string   `json:"hashtags"`
	MediaFiles           []string   `json:"mediaFiles"`
	LocationName         string     `json:"locationName,omitempty"`
	LocationCity         string     `json:"locationCity,omitempty"`
	LocationRegion       string     `json:"locationRegion,omitempty"`

	// Legacy annotation columns carried by an enriched index.
	// Only consulted for the one-time seed of an empty annotation store.
	MyTags      []string `json:"-"`
	MyNotes     string   `json:"-"`
	MyNorthstar bool     `json:"-"`
	MyLenses    []string `json:"-"`
}

// HasLocation reports whether any of the location labels is set.
func (p Post) HasLocation() bool {
	return p.LocationName != "" || p.LocationCity != "" || p.LocationRegion != ""
}

// Category is one of the five curation lenses.
type Category string

const (
	CategoryDirectionIdentity  Category = "direction_identity"
	CategorySkillBuilding      Category = "skill_building"
	CategoryOpportunityHunting Category = "opportunity_hunting"
	CategoryPortfolioPlanning  Category = "portfolio_planning"
	CategoryProduction         Category = "production"
)

// Boolean flag names used in Annotation.Flags. An absent key means false.
const (
	FlagNorthstar = "northstar"
	FlagEnjoyWork = "enjoyWork"
)

// Annotation is the user-authored curation record for a single post.
// Tags are normalized, deduplicated and sorted; Categories are restricted
// to the closed lens enumeration.
type Annotation struct {
	PostID     string          `json:"postId"`
	Tags       []string        `json:"tags"`
	Notes      string          `json:"notes"`
	Flags      map[string]bool `json:"flags"`
	Categories []Category      `json:"categories"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// LatLng is a geocoded coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// CountItem is one row of a frequency ranking.
type CountItem struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
