package recommend

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/hotscore"
)

var baseTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeEvents struct {
	byKind map[domain.InteractionKind][]domain.InteractionEvent
	err    error
	calls  atomic.Int32
}

func (f *fakeEvents) ListEvents(_ context.Context, kind domain.InteractionKind, _ EventQuery) ([]domain.InteractionEvent, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.byKind[kind], nil
}

func ev(user, item int64, kind domain.InteractionKind) domain.InteractionEvent {
	return domain.InteractionEvent{UserID: user, ItemID: item, Kind: kind, CreatedAt: baseTime}
}

type fakeCatalog struct {
	items map[int64]*domain.Item
	err   error
}

func newCatalog(items ...domain.Item) *fakeCatalog {
	c := &fakeCatalog{items: make(map[int64]*domain.Item)}
	for i := range items {
		it := items[i]
		c.items[it.ID] = &it
	}
	return c
}

func meme(id int64, hot float64, tags ...string) domain.Item {
	return domain.Item{
		ID:        id,
		Title:     "meme",
		Status:    domain.StatusPublic,
		HotScore:  hot,
		Tags:      tags,
		AuthorID:  100 + id,
		CreatedAt: baseTime.Add(time.Duration(id) * time.Minute),
	}
}

func (c *fakeCatalog) ListItemIDs(context.Context) ([]int64, error) {
	if c.err != nil {
		return nil, c.err
	}
	ids := make([]int64, 0, len(c.items))
	for id := range c.items {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (c *fakeCatalog) GetItems(_ context.Context, ids []int64) (map[int64]*domain.Item, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[int64]*domain.Item)
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			cp := *it
			out[id] = &cp
		}
	}
	return out, nil
}

func (c *fakeCatalog) public() []domain.Item {
	var out []domain.Item
	for _, it := range c.items {
		if it.IsPublic() {
			out = append(out, *it)
		}
	}
	return out
}

func (c *fakeCatalog) ListPublicByHotScore(_ context.Context, limit int) ([]domain.Item, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := c.public()
	sort.Slice(out, func(i, j int) bool {
		if out[i].HotScore != out[j].HotScore {
			return out[i].HotScore > out[j].HotScore
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCatalog) ListLatestPublic(_ context.Context, limit int) ([]domain.Item, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := c.public()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *fakeCatalog) CountPublicItems(context.Context) (int, error) {
	return len(c.public()), c.err
}

func (c *fakeCatalog) CountPublicItemsWithHotScoreAtLeast(_ context.Context, min float64) (int, error) {
	n := 0
	for _, it := range c.public() {
		if it.HotScore >= min {
			n++
		}
	}
	return n, c.err
}

type fakeUsers struct {
	ids []int64
	err error
}

func (u *fakeUsers) ListUserIDs(context.Context) ([]int64, error) { return u.ids, u.err }

func (u *fakeUsers) UserExists(_ context.Context, id int64) (bool, error) {
	return slices.Contains(u.ids, id), u.err
}

type fakeGraph map[int64][]int64

func (g fakeGraph) Following(_ context.Context, id int64) ([]int64, error) { return g[id], nil }

type fakePrefs struct {
	profiles map[int64]PreferenceProfile
	err      error
}

func (p *fakePrefs) TagPreferences(_ context.Context, id int64) (PreferenceProfile, error) {
	if p.err != nil {
		return PreferenceProfile{}, p.err
	}
	return p.profiles[id], nil
}

type staticMatrix InteractionMatrix

func (m staticMatrix) Build(context.Context, MatrixQuery) (InteractionMatrix, error) {
	return InteractionMatrix(m), nil
}

type memMatrixCache struct {
	mu   sync.Mutex
	data map[string]InteractionMatrix
	sets int
}

func (c *memMatrixCache) GetMatrix(_ context.Context, key string) (InteractionMatrix, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.data[key]
	return m, ok, nil
}

func (c *memMatrixCache) SetMatrix(_ context.Context, key string, m InteractionMatrix, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]InteractionMatrix)
	}
	c.data[key] = m
	c.sets++
	return nil
}

type fakeSource struct {
	name  string
	cands []Candidate
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Recommend(ctx context.Context, _ int64, limit int) ([]Candidate, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := slices.Clone(s.cands)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cand(source string, id int64, score float64) Candidate {
	return Candidate{ItemID: id, Score: score, Source: source}
}

func testClassifier() HotScoreClassifier {
	return hotscore.NewClassifier(hotscore.DefaultThresholds())
}
