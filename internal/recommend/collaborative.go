package recommend

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog"
)

// MatrixProvider builds or returns a cached interaction matrix.
type MatrixProvider interface {
	Build(ctx context.Context, q MatrixQuery) (InteractionMatrix, error)
}

// NeighborSelector picks the similar-user pool of a target user.
type NeighborSelector interface {
	SelectNeighbors(ctx context.Context, target int64, m InteractionMatrix, opts CFOptions) ([]SimilarityScore, error)
}

type globalNeighbors struct{}

func (globalNeighbors) SelectNeighbors(_ context.Context, target int64, m InteractionMatrix, opts CFOptions) ([]SimilarityScore, error) {
	return FindSimilarUsers(target, m, opts.MinSimilarity, opts.MaxSimilarUsers), nil
}

// SocialNeighbors restricts the pool to users the target follows and adds a
// fixed affinity to their similarity.
type SocialNeighbors struct {
	graph    SocialGraph
	affinity float64
}

func NewSocialNeighbors(graph SocialGraph, affinity float64) *SocialNeighbors {
	return &SocialNeighbors{graph: graph, affinity: affinity}
}

func (s *SocialNeighbors) SelectNeighbors(ctx context.Context, target int64, m InteractionMatrix, opts CFOptions) ([]SimilarityScore, error) {
	row, ok := m[target]
	if !ok || opts.MaxSimilarUsers <= 0 {
		return []SimilarityScore{}, nil
	}

	following, err := s.graph.Following(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("list following of user %d: %w", target, err)
	}

	scores := make([]SimilarityScore, 0, len(following))
	for _, id := range sortedUnique(following) {
		other, ok := m[id]
		if id == target || !ok {
			continue
		}
		sim := clamp01(CalculateUserSimilarity(row, other) + s.affinity)
		if sim > 0 && sim >= opts.MinSimilarity {
			scores = append(scores, SimilarityScore{UserID: id, Similarity: sim})
		}
	}

	sortSimilarities(scores)
	if len(scores) > opts.MaxSimilarUsers {
		scores = scores[:opts.MaxSimilarUsers]
	}
	return scores, nil
}

// CollaborativeRecommender recommends items favoured by similar users and
// falls back to popular public items when it has nothing to go on.
type CollaborativeRecommender struct {
	name         string
	fallbackType string
	cfg          Config
	matrix       MatrixProvider
	items        ItemCatalog
	neighbors    NeighborSelector
	log          zerolog.Logger
}

// NewCollaborativeRecommender creates the global collaborative-filtering
// recommender.
func NewCollaborativeRecommender(cfg Config, matrix MatrixProvider, items ItemCatalog, logger zerolog.Logger) *CollaborativeRecommender {
	return &CollaborativeRecommender{
		name:         SourceCollaborative,
		fallbackType: TypeCollaborativeFallback,
		cfg:          cfg,
		matrix:       matrix,
		items:        items,
		neighbors:    globalNeighbors{},
		log:          logger.With().Str("component", SourceCollaborative).Logger(),
	}
}

// NewSocialRecommender creates the variant whose neighbours come from the
// social graph.
func NewSocialRecommender(cfg Config, matrix MatrixProvider, items ItemCatalog, graph SocialGraph, logger zerolog.Logger) *CollaborativeRecommender {
	return &CollaborativeRecommender{
		name:         SourceSocial,
		fallbackType: TypeSocialFallback,
		cfg:          cfg,
		matrix:       matrix,
		items:        items,
		neighbors:    NewSocialNeighbors(graph, cfg.Social.FollowAffinity),
		log:          logger.With().Str("component", SourceSocial).Logger(),
	}
}

func (r *CollaborativeRecommender) Name() string { return r.name }

// Recommend returns up to opts.Limit public candidates for userID. Zero Limit
// and MaxSimilarUsers take the configured defaults.
func (r *CollaborativeRecommender) Recommend(ctx context.Context, userID int64, opts CFOptions) ([]Candidate, error) {
	opts = opts.withDefaults(r.cfg)
	if err := ValidateStruct(opts); err != nil {
		return nil, err
	}

	m, err := r.matrix.Build(ctx, MatrixQuery{})
	if err != nil {
		return nil, fmt.Errorf("build interaction matrix: %w", err)
	}

	row := m[userID]
	if len(row) == 0 {
		return r.fallback(ctx, opts.Limit, nil)
	}

	neighbors, err := r.neighbors.SelectNeighbors(ctx, userID, m, opts)
	if err != nil {
		return nil, err
	}

	raw := make(map[int64]float64)
	contributors := make(map[int64][]int64)
	for _, n := range neighbors {
		for itemID, w := range m[n.UserID] {
			if _, seen := row[itemID]; seen && opts.ExcludeInteracted {
				continue
			}
			raw[itemID] += n.Similarity * w
			contributors[itemID] = append(contributors[itemID], n.UserID)
		}
	}

	var exclude InteractionVector
	if opts.ExcludeInteracted {
		exclude = row
	}
	if len(raw) == 0 {
		return r.fallback(ctx, opts.Limit, exclude)
	}

	ids := make([]int64, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	items, err := r.items.GetItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidate items: %w", err)
	}

	var maxHot float64
	for _, id := range ids {
		if it := items[id]; it.IsPublic() && it.HotScore > maxHot {
			maxHot = it.HotScore
		}
	}

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		it := items[id]
		if !it.IsPublic() {
			continue
		}
		score := raw[id]
		if opts.IncludeHotScore {
			score = (1-opts.HotScoreWeight)*score + opts.HotScoreWeight*normalizedHot(it.HotScore, maxHot)
		}
		similar := contributors[id]
		slices.Sort(similar)
		out = append(out, Candidate{
			ItemID:             id,
			Score:              score,
			Source:             r.name,
			RecommendationType: r.name,
			Item:               it,
			SimilarUsers:       similar,
		})
	}
	if len(out) == 0 {
		return r.fallback(ctx, opts.Limit, exclude)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ItemID < out[j].ItemID
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// fallback ranks public items by hot score, skipping ids in exclude.
func (r *CollaborativeRecommender) fallback(ctx context.Context, limit int, exclude InteractionVector) ([]Candidate, error) {
	popular, err := r.items.ListPublicByHotScore(ctx, limit+len(exclude))
	if err != nil {
		return nil, fmt.Errorf("list popular items: %w", err)
	}

	var maxHot float64
	for _, it := range popular {
		if it.HotScore > maxHot {
			maxHot = it.HotScore
		}
	}

	out := make([]Candidate, 0, limit)
	for i := range popular {
		it := popular[i]
		if _, seen := exclude[it.ID]; seen || !it.IsPublic() {
			continue
		}
		out = append(out, Candidate{
			ItemID:             it.ID,
			Score:              normalizedHot(it.HotScore, maxHot),
			Source:             r.name,
			RecommendationType: r.fallbackType,
			Item:               &it,
		})
		if len(out) == limit {
			break
		}
	}
	r.log.Debug().Int("count", len(out)).Msg("served popularity fallback")
	return out, nil
}

// CFStats summarises the collaborative signal available for a user.
type CFStats struct {
	UserID            int64   `json:"user_id"`
	InteractionCount  int     `json:"interaction_count"`
	SimilarUsersCount int     `json:"similar_users_count"`
	AverageSimilarity float64 `json:"average_similarity"`
}

func (r *CollaborativeRecommender) Stats(ctx context.Context, userID int64) (CFStats, error) {
	stats := CFStats{UserID: userID}

	m, err := r.matrix.Build(ctx, MatrixQuery{})
	if err != nil {
		return stats, fmt.Errorf("build interaction matrix: %w", err)
	}
	stats.InteractionCount = len(m[userID])

	neighbors, err := r.neighbors.SelectNeighbors(ctx, userID, m, DefaultCFOptions(r.cfg))
	if err != nil {
		return stats, err
	}
	stats.SimilarUsersCount = len(neighbors)
	if len(neighbors) > 0 {
		var sum float64
		for _, n := range neighbors {
			sum += n.Similarity
		}
		stats.AverageSimilarity = sum / float64(len(neighbors))
	}
	return stats, nil
}

func normalizedHot(score, top float64) float64 {
	if top <= 0 || score <= 0 {
		return 0
	}
	return score / top
}
