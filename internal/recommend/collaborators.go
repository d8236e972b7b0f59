package recommend

import (
	"context"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/hotscore"
)

// EventQuery restricts the events returned by an EventStore. Nil slices mean
// no restriction; a zero Since means all history.
type EventQuery struct {
	UserIDs []int64
	ItemIDs []int64
	Since   time.Time
}

// EventStore returns engagement events of one kind.
type EventStore interface {
	ListEvents(ctx context.Context, kind domain.InteractionKind, q EventQuery) ([]domain.InteractionEvent, error)
}

// ItemCatalog is the item metadata lookup.
type ItemCatalog interface {
	ListItemIDs(ctx context.Context) ([]int64, error)
	// GetItems returns the items found; unknown ids are absent from the map.
	GetItems(ctx context.Context, ids []int64) (map[int64]*domain.Item, error)
	ListPublicByHotScore(ctx context.Context, limit int) ([]domain.Item, error)
	ListLatestPublic(ctx context.Context, limit int) ([]domain.Item, error)
	CountPublicItems(ctx context.Context) (int, error)
	CountPublicItemsWithHotScoreAtLeast(ctx context.Context, min float64) (int, error)
}

// UserDirectory is the user-existence lookup.
type UserDirectory interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// SocialGraph returns the users a user follows.
type SocialGraph interface {
	Following(ctx context.Context, userID int64) ([]int64, error)
}

// PreferenceProfile is the output contract of the tag-preference calculator.
type PreferenceProfile struct {
	Preferences      map[string]float64 `json:"preferences"`
	InteractionCount int                `json:"interaction_count"`
}

type TagPreferenceCalculator interface {
	TagPreferences(ctx context.Context, userID int64) (PreferenceProfile, error)
}

type HotScoreClassifier interface {
	Level(score float64) hotscore.Level
	MinScore(level hotscore.Level) float64
}

// MatrixCache stores built interaction matrices. Implementations must expire
// entries after ttl.
type MatrixCache interface {
	GetMatrix(ctx context.Context, key string) (InteractionMatrix, bool, error)
	SetMatrix(ctx context.Context, key string, m InteractionMatrix, ttl time.Duration) error
}
