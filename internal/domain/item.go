package domain

import "time"

type ItemStatus string

const (
	StatusPublic  ItemStatus = "public"
	StatusPrivate ItemStatus = "private"
	StatusDraft   ItemStatus = "draft"
	StatusDeleted ItemStatus = "deleted"
)

// Item is a meme as seen by the recommendation engine.
type Item struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Status       ItemStatus `json:"status"`
	HotScore     float64    `json:"hot_score"`
	Tags         []string   `json:"tags"`
	AuthorID     int64      `json:"author_id,omitempty"`
	LikeCount    int        `json:"like_count"`
	DislikeCount int        `json:"dislike_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (i *Item) IsPublic() bool {
	return i != nil && i.Status == StatusPublic
}
