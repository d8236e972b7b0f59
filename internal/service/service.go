package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/metrics"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

const (
	defaultBatchConcurrency = 10
	batchRecLimit           = 10
)

// Store is the persistence the service reads and writes directly.
type Store interface {
	GetUserIDsPaginated(ctx context.Context, page, limit int) ([]int64, error)
	CountUsers(ctx context.Context) (int, error)
	ToggleLike(ctx context.Context, userID, memeID int64) (*domain.LikeToggleResult, error)
}

type ResultCache interface {
	Get(ctx context.Context, userID int64, opts recommend.MixedOptions) (*recommend.RecommendationResult, bool, error)
	Set(ctx context.Context, userID int64, opts recommend.MixedOptions, res *recommend.RecommendationResult) error
	ClearUserCache(ctx context.Context, userID int64) error
}

type MixedRecommender interface {
	Recommend(ctx context.Context, userID int64, opts recommend.MixedOptions) (*recommend.RecommendationResult, error)
}

type CollaborativeRecommender interface {
	Recommend(ctx context.Context, userID int64, opts recommend.CFOptions) ([]recommend.Candidate, error)
	Stats(ctx context.Context, userID int64) (recommend.CFStats, error)
}

type Strategist interface {
	AlgorithmStats(ctx context.Context, userID int64) (*recommend.AlgorithmStats, error)
	AdjustStrategy(ctx context.Context, userID int64, b recommend.Behavior) (*recommend.StrategyAdjustment, error)
}

// Deps groups the collaborators of the service.
type Deps struct {
	Store         Store
	Cache         ResultCache
	Mixed         MixedRecommender
	Collaborative CollaborativeRecommender
	Social        CollaborativeRecommender
	Strategy      Strategist
	// BatchConcurrency bounds the users processed at once by a batch request.
	BatchConcurrency int
	Logger           zerolog.Logger
}

type Service struct {
	store            Store
	cache            ResultCache
	mixed            MixedRecommender
	cf               CollaborativeRecommender
	social           CollaborativeRecommender
	strategy         Strategist
	batchConcurrency int
	log              zerolog.Logger
}

func NewService(d Deps) *Service {
	if d.BatchConcurrency <= 0 {
		d.BatchConcurrency = defaultBatchConcurrency
	}
	return &Service{
		store:            d.Store,
		cache:            d.Cache,
		mixed:            d.Mixed,
		cf:               d.Collaborative,
		social:           d.Social,
		strategy:         d.Strategy,
		batchConcurrency: d.BatchConcurrency,
		log:              d.Logger.With().Str("component", "service").Logger(),
	}
}

// MixedResponse is a mixed result and whether it came from the cache.
type MixedResponse struct {
	Result   *recommend.RecommendationResult
	CacheHit bool
}

// GetRecommendations returns mixed recommendations, served from the cache
// when an entry for the same user and options exists.
func (s *Service) GetRecommendations(ctx context.Context, userID int64, opts recommend.MixedOptions) (*MixedResponse, error) {
	// Check Cache
	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, userID, opts)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache get failed")
		}
		if found {
			return &MixedResponse{Result: cached, CacheHit: true}, nil
		}
	}

	// Cache miss -> generate recommendations
	res, err := s.mixed.Recommend(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, opts, res); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache set failed")
		}
	}

	return &MixedResponse{Result: res}, nil
}

// GetCollaborative returns collaborative-filtering candidates, restricted to
// followed users when social is set.
func (s *Service) GetCollaborative(ctx context.Context, userID int64, opts recommend.CFOptions, social bool) ([]recommend.Candidate, error) {
	rec := s.cf
	if social {
		rec = s.social
	}
	cands, err := rec.Recommend(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	return cands, nil
}

func (s *Service) GetCollaborativeStats(ctx context.Context, userID int64) (recommend.CFStats, error) {
	return s.cf.Stats(ctx, userID)
}

func (s *Service) GetAlgorithmStats(ctx context.Context, userID int64) (*recommend.AlgorithmStats, error) {
	return s.strategy.AlgorithmStats(ctx, userID)
}

func (s *Service) AdjustStrategy(ctx context.Context, userID int64, b recommend.Behavior) (*recommend.StrategyAdjustment, error) {
	return s.strategy.AdjustStrategy(ctx, userID, b)
}

// ToggleLike toggles the user's like on a meme and clears the user's cached
// results.
func (s *Service) ToggleLike(ctx context.Context, userID, memeID int64) (*domain.LikeToggleResult, error) {
	res, err := s.store.ToggleLike(ctx, userID, memeID)
	if err != nil {
		return nil, fmt.Errorf("toggle like: %w", err)
	}
	metrics.LikeToggles.WithLabelValues(string(res.Action)).Inc()

	if s.cache != nil {
		if err := s.cache.ClearUserCache(ctx, userID); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("cache invalidation failed")
		}
	}
	return res, nil
}

// Handle response error
func categorizeError(err error) (string, string) {
	if errors.Is(err, domain.ErrUserNotFound) {
		return "user_not_found", "user not found"
	}
	if recommend.IsValidationError(err) {
		return "invalid_options", err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "request_timeout", "request timed out"
	}
	return "internal_error", "an unexpected error occurred"
}
