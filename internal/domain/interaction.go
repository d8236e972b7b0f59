package domain

import "time"

// InteractionKind is one engagement event type.
type InteractionKind string

const (
	KindLike    InteractionKind = "like"
	KindCollect InteractionKind = "collect"
	KindComment InteractionKind = "comment"
	KindShare   InteractionKind = "share"
	KindView    InteractionKind = "view"
)

// AllKinds lists every engagement kind in descending intent order.
var AllKinds = []InteractionKind{KindShare, KindCollect, KindComment, KindLike, KindView}

func (k InteractionKind) Valid() bool {
	switch k {
	case KindLike, KindCollect, KindComment, KindShare, KindView:
		return true
	}
	return false
}

type InteractionEvent struct {
	UserID    int64           `json:"user_id"`
	ItemID    int64           `json:"item_id"`
	Kind      InteractionKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

type ToggleAction string

const (
	ActionAdded   ToggleAction = "added"
	ActionRemoved ToggleAction = "removed"
)

type LikeToggleResult struct {
	Action         ToggleAction `json:"action"`
	DislikeRemoved bool         `json:"dislike_removed"`
	LikeCount      int          `json:"like_count"`
}
