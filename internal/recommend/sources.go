package recommend

import (
	"context"
	"fmt"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/hotscore"
)

// Candidate is one recommended item.
type Candidate struct {
	ItemID             int64              `json:"item_id"`
	Score              float64            `json:"score"`
	Source             string             `json:"source"`
	RecommendationType string             `json:"recommendation_type,omitempty"`
	Item               *domain.Item       `json:"item,omitempty"`
	SimilarUsers       []int64            `json:"similar_users,omitempty"`
	Scores             map[string]float64 `json:"scores,omitempty"`
	HotLevel           hotscore.Level     `json:"hot_level,omitempty"`
}

// Source produces ranked candidates for a user. userID 0 is anonymous.
type Source interface {
	Name() string
	Recommend(ctx context.Context, userID int64, limit int) ([]Candidate, error)
}

// HotSource ranks public items by hot score.
type HotSource struct {
	items ItemCatalog
}

func NewHotSource(items ItemCatalog) *HotSource {
	return &HotSource{items: items}
}

func (s *HotSource) Name() string { return SourceHot }

func (s *HotSource) Recommend(ctx context.Context, _ int64, limit int) ([]Candidate, error) {
	items, err := s.items.ListPublicByHotScore(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list hot items: %w", err)
	}
	out := make([]Candidate, 0, len(items))
	for i := range items {
		it := items[i]
		out = append(out, Candidate{
			ItemID:             it.ID,
			Score:              it.HotScore,
			Source:             SourceHot,
			RecommendationType: SourceHot,
			Item:               &it,
		})
	}
	return out, nil
}

// LatestSource ranks the newest public items, newest first.
type LatestSource struct {
	items ItemCatalog
}

func NewLatestSource(items ItemCatalog) *LatestSource {
	return &LatestSource{items: items}
}

func (s *LatestSource) Name() string { return SourceLatest }

func (s *LatestSource) Recommend(ctx context.Context, _ int64, limit int) ([]Candidate, error) {
	items, err := s.items.ListLatestPublic(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list latest items: %w", err)
	}
	out := make([]Candidate, 0, len(items))
	n := float64(len(items))
	for i := range items {
		it := items[i]
		out = append(out, Candidate{
			ItemID:             it.ID,
			Score:              (n - float64(i)) / n,
			Source:             SourceLatest,
			RecommendationType: SourceLatest,
			Item:               &it,
		})
	}
	return out, nil
}

// collaborativeSource adapts a CollaborativeRecommender to Source.
type collaborativeSource struct {
	rec  *CollaborativeRecommender
	opts CFOptions
}

// AsSource exposes the recommender to the mixed engine using the configured
// default options.
func (r *CollaborativeRecommender) AsSource() Source {
	return &collaborativeSource{rec: r, opts: DefaultCFOptions(r.cfg)}
}

func (s *collaborativeSource) Name() string { return s.rec.Name() }

func (s *collaborativeSource) Recommend(ctx context.Context, userID int64, limit int) ([]Candidate, error) {
	opts := s.opts
	opts.Limit = min(limit, 100)
	return s.rec.Recommend(ctx, userID, opts)
}
