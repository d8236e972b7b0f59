package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

type fakeStore struct {
	users     []int64
	toggleErr error
	toggled   []int64
}

func (f *fakeStore) GetUserIDsPaginated(_ context.Context, page, limit int) ([]int64, error) {
	start := (page - 1) * limit
	if start >= len(f.users) {
		return nil, nil
	}
	end := min(start+limit, len(f.users))
	return f.users[start:end], nil
}

func (f *fakeStore) CountUsers(context.Context) (int, error) { return len(f.users), nil }

func (f *fakeStore) ToggleLike(_ context.Context, userID, memeID int64) (*domain.LikeToggleResult, error) {
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	f.toggled = append(f.toggled, memeID)
	return &domain.LikeToggleResult{Action: domain.ActionAdded, LikeCount: 1}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*recommend.RecommendationResult
	getErr  error
	cleared []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*recommend.RecommendationResult{}}
}

func cacheKey(userID int64, opts recommend.MixedOptions) string {
	return fmt.Sprintf("%d/%d", userID, opts.Limit)
}

func (c *fakeCache) Get(_ context.Context, userID int64, opts recommend.MixedOptions) (*recommend.RecommendationResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	res, ok := c.entries[cacheKey(userID, opts)]
	return res, ok, nil
}

func (c *fakeCache) Set(_ context.Context, userID int64, opts recommend.MixedOptions, res *recommend.RecommendationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(userID, opts)] = res
	return nil
}

func (c *fakeCache) ClearUserCache(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleared = append(c.cleared, userID)
	return nil
}

type fakeMixed struct {
	calls    atomic.Int32
	failFor  map[int64]error
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (m *fakeMixed) Recommend(_ context.Context, userID int64, opts recommend.MixedOptions) (*recommend.RecommendationResult, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if err := m.failFor[userID]; err != nil {
		return nil, err
	}
	return &recommend.RecommendationResult{
		Algorithm:       recommend.AlgorithmMixed,
		Recommendations: []recommend.Candidate{{ItemID: userID * 10, Score: 1}},
	}, nil
}

type fakeCF struct{ name string }

func (f *fakeCF) Recommend(_ context.Context, userID int64, opts recommend.CFOptions) ([]recommend.Candidate, error) {
	return []recommend.Candidate{{ItemID: 1, Source: f.name}}, nil
}

func (f *fakeCF) Stats(_ context.Context, userID int64) (recommend.CFStats, error) {
	return recommend.CFStats{UserID: userID, InteractionCount: 3}, nil
}

func newTestService(store *fakeStore, cache *fakeCache, mixed *fakeMixed) *Service {
	d := Deps{
		Store:            store,
		Mixed:            mixed,
		Collaborative:    &fakeCF{name: recommend.SourceCollaborative},
		Social:           &fakeCF{name: recommend.SourceSocial},
		BatchConcurrency: 2,
		Logger:           zerolog.Nop(),
	}
	if cache != nil {
		d.Cache = cache
	}
	return NewService(d)
}

func TestGetRecommendationsUsesCache(t *testing.T) {
	mixed := &fakeMixed{}
	svc := newTestService(&fakeStore{}, newFakeCache(), mixed)
	opts := recommend.MixedOptions{Limit: 5}

	first, err := svc.GetRecommendations(context.Background(), 1, opts)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.GetRecommendations(context.Background(), 1, opts)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, int32(1), mixed.calls.Load())
}

func TestGetRecommendationsCacheErrorFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	svc := newTestService(&fakeStore{}, cache, &fakeMixed{})

	resp, err := svc.GetRecommendations(context.Background(), 1, recommend.MixedOptions{})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
	require.Len(t, resp.Result.Recommendations, 1)
}

func TestGetRecommendationsWithoutCache(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil, &fakeMixed{})
	resp, err := svc.GetRecommendations(context.Background(), 0, recommend.MixedOptions{})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func TestGetCollaborativeSelectsVariant(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil, &fakeMixed{})

	got, err := svc.GetCollaborative(context.Background(), 1, recommend.CFOptions{}, false)
	require.NoError(t, err)
	assert.Equal(t, recommend.SourceCollaborative, got[0].Source)

	got, err = svc.GetCollaborative(context.Background(), 1, recommend.CFOptions{}, true)
	require.NoError(t, err)
	assert.Equal(t, recommend.SourceSocial, got[0].Source)
}

func TestGetBatchRecommendations(t *testing.T) {
	store := &fakeStore{users: []int64{1, 2, 3, 4, 5}}
	mixed := &fakeMixed{failFor: map[int64]error{2: domain.ErrUserNotFound}}
	svc := newTestService(store, newFakeCache(), mixed)

	resp, err := svc.GetBatchRecommendations(context.Background(), 1, 4)
	require.NoError(t, err)

	assert.Equal(t, 5, resp.TotalUsers)
	require.Len(t, resp.Results, 4)
	assert.Equal(t, 3, resp.Summary.SuccessCount)
	assert.Equal(t, 1, resp.Summary.FailedCount)
	assert.LessOrEqual(t, mixed.maxSeen.Load(), int32(2))

	for i, r := range resp.Results {
		assert.Equal(t, int64(i+1), r.UserID, "results keep page order")
	}
	failed := resp.Results[1]
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "user_not_found", failed.Error)
	assert.Equal(t, int64(30), resp.Results[2].Recommendations[0].ItemID)
}

func TestToggleLikeClearsCache(t *testing.T) {
	store := &fakeStore{}
	cache := newFakeCache()
	svc := newTestService(store, cache, &fakeMixed{})

	res, err := svc.ToggleLike(context.Background(), 7, 99)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAdded, res.Action)
	assert.Equal(t, []int64{99}, store.toggled)
	assert.Equal(t, []int64{7}, cache.cleared)
}

func TestToggleLikeError(t *testing.T) {
	store := &fakeStore{toggleErr: domain.ErrItemNotFound}
	cache := newFakeCache()
	svc := newTestService(store, cache, &fakeMixed{})

	_, err := svc.ToggleLike(context.Background(), 7, 99)
	require.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.Empty(t, cache.cleared)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("wrap: %w", domain.ErrUserNotFound), "user_not_found"},
		{recommend.ValidateStruct(recommend.Behavior{ClickRate: 2}), "invalid_options"},
		{context.DeadlineExceeded, "request_timeout"},
		{errors.New("boom"), "internal_error"},
	}
	for _, tt := range tests {
		code, _ := categorizeError(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}
