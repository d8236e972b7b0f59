package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/actuallystonmai/meme-recommendation-service/internal/hotscore"
)

// Strategy focus labels.
const (
	FocusSocial          = "social"
	FocusExploration     = "exploration"
	FocusPersonalization = "personalization"
)

const topPreferenceTags = 5

type TagPreference struct {
	Tag    string  `json:"tag"`
	Weight float64 `json:"weight"`
}

type UserActivity struct {
	InteractionCount int `json:"interaction_count"`
	PreferenceCount  int `json:"preference_count"`
}

// AlgorithmStats reports catalog popularity counts and, for a given user,
// their activity and cold-start state. User keys are omitted for anonymous
// requests.
type AlgorithmStats struct {
	TotalMemes      int              `json:"total_memes"`
	HotMemes        int              `json:"hot_memes"`
	TrendingMemes   int              `json:"trending_memes"`
	ViralMemes      int              `json:"viral_memes"`
	UserActivity    *UserActivity    `json:"user_activity,omitempty"`
	ColdStart       *ColdStartStatus `json:"cold_start,omitempty"`
	UserPreferences []TagPreference  `json:"user_preferences,omitempty"`
}

type ColdStartHandling struct {
	Applied bool            `json:"applied"`
	Status  ColdStartStatus `json:"status"`
}

type StrategyAdjustment struct {
	UserID            int64             `json:"user_id"`
	Focus             string            `json:"focus"`
	Weights           WeightProfile     `json:"weights"`
	ColdStartHandling ColdStartHandling `json:"cold_start_handling"`
}

// StrategyAdjuster turns observed behaviour into a weight profile that can be
// passed back to the mixed engine through MixedOptions.Weights.
type StrategyAdjuster struct {
	cfg        Config
	coldStart  *coldStartClassifier
	items      ItemCatalog
	classifier HotScoreClassifier
}

func NewStrategyAdjuster(cfg Config, users UserDirectory, prefs TagPreferenceCalculator, items ItemCatalog, classifier HotScoreClassifier, logger zerolog.Logger) *StrategyAdjuster {
	log := logger.With().Str("component", "strategy").Logger()
	return &StrategyAdjuster{
		cfg:        cfg,
		coldStart:  &coldStartClassifier{cfg: cfg, users: users, prefs: prefs, log: log},
		items:      items,
		classifier: classifier,
	}
}

func (s *StrategyAdjuster) AlgorithmStats(ctx context.Context, userID int64) (*AlgorithmStats, error) {
	stats := &AlgorithmStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.items.CountPublicItems(gctx)
		if err != nil {
			return fmt.Errorf("count memes: %w", err)
		}
		stats.TotalMemes = n
		return nil
	})
	for level, dst := range map[hotscore.Level]*int{
		hotscore.LevelHot:      &stats.HotMemes,
		hotscore.LevelTrending: &stats.TrendingMemes,
		hotscore.LevelViral:    &stats.ViralMemes,
	} {
		g.Go(func() error {
			n, err := s.items.CountPublicItemsWithHotScoreAtLeast(gctx, s.classifier.MinScore(level))
			if err != nil {
				return fmt.Errorf("count %s memes: %w", level, err)
			}
			*dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if userID == 0 {
		return stats, nil
	}

	authenticated := s.coldStart.authenticated(ctx, userID)
	status, profile := s.coldStart.classify(ctx, userID, authenticated)
	stats.ColdStart = &status
	stats.UserActivity = &UserActivity{
		InteractionCount: status.InteractionCount,
		PreferenceCount:  status.PreferenceCount,
	}
	stats.UserPreferences = topTags(profile.Preferences, topPreferenceTags)
	return stats, nil
}

// AdjustStrategy applies the rules in order: high engagement with a low click
// rate is social, otherwise a high diversity preference is exploration,
// otherwise personalization.
func (s *StrategyAdjuster) AdjustStrategy(ctx context.Context, userID int64, b Behavior) (*StrategyAdjustment, error) {
	if err := ValidateStruct(b); err != nil {
		return nil, err
	}

	st := s.cfg.Strategy
	var focus string
	var weights WeightProfile
	switch {
	case b.EngagementRate > st.SocialMinEngagement && b.ClickRate < st.SocialMaxClickRate:
		focus, weights = FocusSocial, st.Social.Clone()
	case b.DiversityPreference > st.ExplorationMinDiversity:
		focus, weights = FocusExploration, st.Exploration.Clone()
	default:
		focus, weights = FocusPersonalization, st.Personalization.Clone()
	}

	authenticated := s.coldStart.authenticated(ctx, userID)
	status, _ := s.coldStart.classify(ctx, userID, authenticated)
	if status.IsColdStart {
		weights = weights.applyColdStart(st.ColdStartHotFloor)
	}

	return &StrategyAdjustment{
		UserID:  userID,
		Focus:   focus,
		Weights: weights,
		ColdStartHandling: ColdStartHandling{
			Applied: status.IsColdStart,
			Status:  status,
		},
	}, nil
}

func topTags(prefs map[string]float64, n int) []TagPreference {
	out := make([]TagPreference, 0, len(prefs))
	for tag, w := range prefs {
		if w > 0 {
			out = append(out, TagPreference{Tag: tag, Weight: w})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
