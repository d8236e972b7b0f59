package recommend

import (
	"errors"
	"fmt"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
)

// Source names. They double as keys of a WeightProfile.
const (
	SourceHot           = "hot"
	SourceContentBased  = "content_based"
	SourceCollaborative = "collaborative_filtering"
	SourceSocial        = "social_collaborative_filtering"
	SourceLatest        = "latest"
)

// Recommendation types attached to fallback candidates.
const (
	TypeCollaborativeFallback = "collaborative_fallback"
	TypeSocialFallback        = "social_collaborative_fallback"
)

// Accumulation policies for repeated (user, item, kind) events.
const (
	PolicySum   = "sum"
	PolicyCap   = "cap"
	PolicyDecay = "decay"
)

// Config carries every weight and threshold used by the engine. It is passed
// explicitly into the builder, recommenders and orchestrator.
type Config struct {
	IntentWeights IntentWeights      `koanf:"intent_weights"`
	Accumulation  AccumulationConfig `koanf:"accumulation"`

	// RecencyWindow limits the events used to build the interaction matrix.
	// Zero means all history.
	RecencyWindow time.Duration `koanf:"recency_window"`

	ColdStart     ColdStartConfig     `koanf:"cold_start"`
	Weights       WeightsConfig       `koanf:"weights"`
	Strategy      StrategyConfig      `koanf:"strategy"`
	Social        SocialConfig        `koanf:"social"`
	Collaborative CollaborativeConfig `koanf:"collaborative"`
	Mixed         MixedConfig         `koanf:"mixed"`
	Breaker       BreakerConfig       `koanf:"breaker"`

	// SourceTimeout bounds each source call made by the mixed engine.
	SourceTimeout time.Duration `koanf:"source_timeout"`

	// MatrixCacheTTL bounds how long a built interaction matrix may be reused.
	MatrixCacheTTL time.Duration `koanf:"matrix_cache_ttl"`
}

// IntentWeights is the weight one event of each kind adds to a user's vector.
// Validate enforces share > collect > comment > like > view.
type IntentWeights struct {
	Share   float64 `koanf:"share"`
	Collect float64 `koanf:"collect"`
	Comment float64 `koanf:"comment"`
	Like    float64 `koanf:"like"`
	View    float64 `koanf:"view"`
}

func (w IntentWeights) For(kind domain.InteractionKind) float64 {
	switch kind {
	case domain.KindShare:
		return w.Share
	case domain.KindCollect:
		return w.Collect
	case domain.KindComment:
		return w.Comment
	case domain.KindLike:
		return w.Like
	case domain.KindView:
		return w.View
	}
	return 0
}

// AccumulationConfig selects how repeats of the same (user, item, kind) add up.
//
//   - sum:   every event adds its full intent weight (unbounded)
//   - cap:   only the first MaxRepeats events count
//   - decay: the n-th repeat (0-based) adds weight * DecayFactor^n
type AccumulationConfig struct {
	Policy      string  `koanf:"policy"`
	MaxRepeats  int     `koanf:"max_repeats"`
	DecayFactor float64 `koanf:"decay_factor"`
}

type ColdStartConfig struct {
	// MinPreferenceTags is the smallest tag-preference profile that counts as
	// personalization signal. Bounded below by 1 (an empty profile is always
	// cold) and above by 3 (a three-tag profile is established).
	MinPreferenceTags int `koanf:"min_preference_tags"`
}

type WeightsConfig struct {
	Established WeightProfile `koanf:"established"`
	ColdStart   WeightProfile `koanf:"cold_start"`
}

// StrategyConfig holds the behaviour bands used by AdjustStrategy. The bands
// are inferred from observed behaviour: engagement 0.8 with clicks 0.2 is
// social, while engagement 0.7 with clicks 0.4 is not; diversity 0.9 is
// exploration, 0.8 is not.
type StrategyConfig struct {
	SocialMinEngagement     float64 `koanf:"social_min_engagement"`
	SocialMaxClickRate      float64 `koanf:"social_max_click_rate"`
	ExplorationMinDiversity float64 `koanf:"exploration_min_diversity"`

	// ColdStartHotFloor is the hot weight a cold-start user is raised to.
	ColdStartHotFloor float64 `koanf:"cold_start_hot_floor"`

	Social          WeightProfile `koanf:"social"`
	Exploration     WeightProfile `koanf:"exploration"`
	Personalization WeightProfile `koanf:"personalization"`
}

type SocialConfig struct {
	// FollowAffinity is added to the similarity of followed users.
	FollowAffinity float64 `koanf:"follow_affinity"`
}

// CollaborativeConfig holds defaults applied to zero-valued CFOptions fields.
type CollaborativeConfig struct {
	Limit           int     `koanf:"limit"`
	MinSimilarity   float64 `koanf:"min_similarity"`
	MaxSimilarUsers int     `koanf:"max_similar_users"`
	HotScoreWeight  float64 `koanf:"hot_score_weight"`
}

type MixedConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
	// CandidateMultiplier scales how many candidates each source is asked for.
	CandidateMultiplier int `koanf:"candidate_multiplier"`
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		IntentWeights: IntentWeights{
			Share:   3.0,
			Collect: 2.5,
			Comment: 2.0,
			Like:    1.5,
			View:    0.5,
		},
		Accumulation: AccumulationConfig{
			Policy:      PolicySum,
			MaxRepeats:  3,
			DecayFactor: 0.5,
		},
		RecencyWindow: 90 * 24 * time.Hour,
		ColdStart:     ColdStartConfig{MinPreferenceTags: 2},
		Weights: WeightsConfig{
			Established: WeightProfile{
				SourceHot:           0.25,
				SourceContentBased:  0.35,
				SourceCollaborative: 0.25,
				SourceSocial:        0.15,
			},
			ColdStart: WeightProfile{
				SourceHot:           0.70,
				SourceContentBased:  0,
				SourceCollaborative: 0.20,
				SourceSocial:        0.10,
			},
		},
		Strategy: StrategyConfig{
			SocialMinEngagement:     0.6,
			SocialMaxClickRate:      0.3,
			ExplorationMinDiversity: 0.8,
			ColdStartHotFloor:       0.65,
			Social: WeightProfile{
				SourceHot:           0.20,
				SourceContentBased:  0.20,
				SourceCollaborative: 0.20,
				SourceSocial:        0.35,
				SourceLatest:        0.05,
			},
			Exploration: WeightProfile{
				SourceHot:           0.20,
				SourceContentBased:  0.15,
				SourceCollaborative: 0.10,
				SourceSocial:        0.05,
				SourceLatest:        0.50,
			},
			Personalization: WeightProfile{
				SourceHot:           0.15,
				SourceContentBased:  0.40,
				SourceCollaborative: 0.30,
				SourceSocial:        0.10,
				SourceLatest:        0.05,
			},
		},
		Social: SocialConfig{FollowAffinity: 0.2},
		Collaborative: CollaborativeConfig{
			Limit:           20,
			MinSimilarity:   0.1,
			MaxSimilarUsers: 50,
			HotScoreWeight:  0.3,
		},
		Mixed: MixedConfig{
			DefaultLimit:        20,
			MaxLimit:            100,
			CandidateMultiplier: 2,
		},
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		SourceTimeout:  2 * time.Second,
		MatrixCacheTTL: 5 * time.Minute,
	}
}

// Validate checks the invariants the engine relies on.
func (c *Config) Validate() error {
	var errs []error

	w := c.IntentWeights
	if !(w.Share > w.Collect && w.Collect > w.Comment && w.Comment > w.Like && w.Like > w.View && w.View > 0) {
		errs = append(errs, fmt.Errorf("intent weights must satisfy share > collect > comment > like > view > 0, got %+v", w))
	}

	switch c.Accumulation.Policy {
	case PolicySum:
	case PolicyCap:
		if c.Accumulation.MaxRepeats < 1 {
			errs = append(errs, fmt.Errorf("accumulation.max_repeats must be >= 1 for policy %q", PolicyCap))
		}
	case PolicyDecay:
		if c.Accumulation.DecayFactor <= 0 || c.Accumulation.DecayFactor > 1 {
			errs = append(errs, fmt.Errorf("accumulation.decay_factor must be in (0,1] for policy %q", PolicyDecay))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown accumulation policy %q", c.Accumulation.Policy))
	}

	if c.RecencyWindow < 0 {
		errs = append(errs, errors.New("recency_window must not be negative"))
	}
	if c.ColdStart.MinPreferenceTags < 1 {
		errs = append(errs, errors.New("cold_start.min_preference_tags must be >= 1"))
	}

	profiles := map[string]WeightProfile{
		"weights.established":      c.Weights.Established,
		"weights.cold_start":       c.Weights.ColdStart,
		"strategy.social":          c.Strategy.Social,
		"strategy.exploration":     c.Strategy.Exploration,
		"strategy.personalization": c.Strategy.Personalization,
	}
	for name, p := range profiles {
		if err := p.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Weights.ColdStart[SourceContentBased] != 0 {
		errs = append(errs, errors.New("weights.cold_start.content_based must be 0"))
	}
	if c.Weights.ColdStart[SourceHot] <= 0.6 {
		errs = append(errs, errors.New("weights.cold_start.hot must be > 0.6"))
	}
	if c.Weights.Established[SourceContentBased] <= 0.2 {
		errs = append(errs, errors.New("weights.established.content_based must be > 0.2"))
	}
	if c.Strategy.ColdStartHotFloor <= 0.6 || c.Strategy.ColdStartHotFloor >= 1 {
		errs = append(errs, errors.New("strategy.cold_start_hot_floor must be in (0.6,1)"))
	}

	for name, v := range map[string]float64{
		"strategy.social_min_engagement":     c.Strategy.SocialMinEngagement,
		"strategy.social_max_click_rate":     c.Strategy.SocialMaxClickRate,
		"strategy.exploration_min_diversity": c.Strategy.ExplorationMinDiversity,
		"social.follow_affinity":             c.Social.FollowAffinity,
		"collaborative.min_similarity":       c.Collaborative.MinSimilarity,
		"collaborative.hot_score_weight":     c.Collaborative.HotScoreWeight,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be in [0,1], got %v", name, v))
		}
	}

	if c.Collaborative.Limit < 1 || c.Collaborative.MaxSimilarUsers < 1 {
		errs = append(errs, errors.New("collaborative.limit and collaborative.max_similar_users must be >= 1"))
	}
	if c.Mixed.DefaultLimit < 1 || c.Mixed.MaxLimit < c.Mixed.DefaultLimit {
		errs = append(errs, errors.New("mixed.default_limit must be >= 1 and <= mixed.max_limit"))
	}
	if c.Mixed.CandidateMultiplier < 1 {
		errs = append(errs, errors.New("mixed.candidate_multiplier must be >= 1"))
	}
	if c.SourceTimeout <= 0 {
		errs = append(errs, errors.New("source_timeout must be positive"))
	}
	if c.MatrixCacheTTL <= 0 {
		errs = append(errs, errors.New("matrix_cache_ttl must be positive"))
	}

	return errors.Join(errs...)
}
