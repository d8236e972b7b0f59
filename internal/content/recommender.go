// Package content scores memes against a user's tag preferences. It is both
// the tag-preference calculator and the content-based source of the mixed
// engine.
package content

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

// TagEvent is one engagement of a user together with the tags of the meme.
type TagEvent struct {
	ItemID    int64
	Tags      []string
	CreatedAt time.Time
}

// Store is the data the recommender reads.
type Store interface {
	// UserTagHistory returns the user's most recent engagements, newest first.
	UserTagHistory(ctx context.Context, userID int64, limit int) ([]TagEvent, error)
	// ListPublicNotInteracted returns the hottest public memes the user has
	// not engaged with.
	ListPublicNotInteracted(ctx context.Context, userID int64, limit int) ([]domain.Item, error)
}

type Config struct {
	// HistoryLimit is how many recent engagements feed the preference profile.
	HistoryLimit int `koanf:"history_limit"`
	// CandidatePool is how many unseen memes are scored per request.
	CandidatePool int `koanf:"candidate_pool"`
	// UnknownTagPreference is used for tags absent from the profile.
	UnknownTagPreference float64 `koanf:"unknown_tag_preference"`

	PopularityWeight float64 `koanf:"popularity_weight"`
	TagWeight        float64 `koanf:"tag_weight"`
	RecencyWeight    float64 `koanf:"recency_weight"`
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:         50,
		CandidatePool:        100,
		UnknownTagPreference: 0.1,
		PopularityWeight:     0.4,
		TagWeight:            0.35,
		RecencyWeight:        0.15,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.HistoryLimit < 1 {
		errs = append(errs, errors.New("history_limit must be >= 1"))
	}
	if c.CandidatePool < 1 {
		errs = append(errs, errors.New("candidate_pool must be >= 1"))
	}
	if c.UnknownTagPreference < 0 || c.UnknownTagPreference > 1 {
		errs = append(errs, errors.New("unknown_tag_preference must be in [0,1]"))
	}
	if c.PopularityWeight < 0 || c.TagWeight < 0 || c.RecencyWeight < 0 {
		errs = append(errs, errors.New("score weights must not be negative"))
	}
	return errors.Join(errs...)
}

type Recommender struct {
	cfg   Config
	store Store
	now   func() time.Time
}

func NewRecommender(cfg Config, store Store) *Recommender {
	return &Recommender{cfg: cfg, store: store, now: time.Now}
}

func (r *Recommender) Name() string { return recommend.SourceContentBased }

// TagPreferences derives the user's tag profile from recent engagements.
func (r *Recommender) TagPreferences(ctx context.Context, userID int64) (recommend.PreferenceProfile, error) {
	if userID <= 0 {
		return recommend.PreferenceProfile{Preferences: map[string]float64{}}, nil
	}
	history, err := r.store.UserTagHistory(ctx, userID, r.cfg.HistoryLimit)
	if err != nil {
		return recommend.PreferenceProfile{}, fmt.Errorf("fetch tag history: %w", err)
	}
	return recommend.PreferenceProfile{
		Preferences:      calculateTagPreferenceWeights(history),
		InteractionCount: len(history),
	}, nil
}

// Recommend scores unseen public memes by popularity, tag match and recency.
func (r *Recommender) Recommend(ctx context.Context, userID int64, limit int) ([]recommend.Candidate, error) {
	if userID <= 0 || limit <= 0 {
		return []recommend.Candidate{}, nil
	}

	profile, err := r.TagPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(profile.Preferences) == 0 {
		return []recommend.Candidate{}, nil
	}

	candidates, err := r.store.ListPublicNotInteracted(ctx, userID, r.cfg.CandidatePool)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	var maxHot float64
	for _, it := range candidates {
		maxHot = math.Max(maxHot, it.HotScore)
	}

	now := r.now()
	scored := make([]recommend.Candidate, 0, len(candidates))
	for i := range candidates {
		it := candidates[i]
		score := r.computeFinalScore(it, profile.Preferences, maxHot, now)
		scored = append(scored, recommend.Candidate{
			ItemID:             it.ID,
			Score:              math.Round(score*1000) / 1000,
			Source:             recommend.SourceContentBased,
			RecommendationType: recommend.SourceContentBased,
			Item:               &it,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ItemID < scored[j].ItemID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// calculateTagPreferenceWeights returns, per tag, the share of engagements
// whose meme carries it.
func calculateTagPreferenceWeights(history []TagEvent) map[string]float64 {
	tagCounts := make(map[string]int)
	for _, e := range history {
		seen := make(map[string]bool, len(e.Tags))
		for _, tag := range e.Tags {
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			tagCounts[tag]++
		}
	}

	prefs := make(map[string]float64, len(tagCounts))
	total := float64(len(history))
	if total == 0 {
		return prefs
	}
	for tag, count := range tagCounts {
		prefs[tag] = float64(count) / total
	}
	return prefs
}

func calculateRecencyFactor(createdAt, now time.Time) float64 {
	daysSinceCreation := now.Sub(createdAt).Hours() / 24.0
	if daysSinceCreation < 0 {
		daysSinceCreation = 0
	}
	return 1.0 / (1.0 + daysSinceCreation/365.0)
}

func (r *Recommender) computeFinalScore(it domain.Item, prefs map[string]float64, maxHot float64, now time.Time) float64 {
	var popularity float64
	if maxHot > 0 {
		popularity = it.HotScore / maxHot
	}

	// mean preference over the meme's tags
	tagPref := r.cfg.UnknownTagPreference
	if len(it.Tags) > 0 {
		var sum float64
		for _, tag := range it.Tags {
			p, ok := prefs[tag]
			if !ok {
				p = r.cfg.UnknownTagPreference
			}
			sum += p
		}
		tagPref = sum / float64(len(it.Tags))
	}

	recency := calculateRecencyFactor(it.CreatedAt, now)

	return popularity*r.cfg.PopularityWeight + tagPref*r.cfg.TagWeight + recency*r.cfg.RecencyWeight
}
