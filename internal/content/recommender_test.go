package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuallystonmai/meme-recommendation-service/internal/domain"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	history    map[int64][]TagEvent
	candidates []domain.Item
	err        error
}

func (f *fakeStore) UserTagHistory(_ context.Context, userID int64, limit int) ([]TagEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	h := f.history[userID]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

func (f *fakeStore) ListPublicNotInteracted(_ context.Context, _ int64, limit int) ([]domain.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := f.candidates
	if len(c) > limit {
		c = c[:limit]
	}
	return c, nil
}

func newTestRecommender(store Store) *Recommender {
	r := NewRecommender(DefaultConfig(), store)
	r.now = func() time.Time { return now }
	return r
}

func catHistory() map[int64][]TagEvent {
	return map[int64][]TagEvent{
		1: {
			{ItemID: 1, Tags: []string{"cats", "funny"}},
			{ItemID: 2, Tags: []string{"cats"}},
			{ItemID: 3, Tags: []string{"cats"}},
			{ItemID: 4, Tags: []string{"politics"}},
		},
	}
}

func TestRecommend(t *testing.T) {
	store := &fakeStore{
		history: catHistory(),
		candidates: []domain.Item{
			{ID: 10, Title: "Cat meme", Status: domain.StatusPublic, HotScore: 90, Tags: []string{"cats"}, CreatedAt: now},
			{ID: 11, Title: "Politics meme", Status: domain.StatusPublic, HotScore: 50, Tags: []string{"politics"}, CreatedAt: now},
			{ID: 12, Title: "Dog meme", Status: domain.StatusPublic, HotScore: 30, Tags: []string{"dogs"}, CreatedAt: now},
		},
	}
	r := newTestRecommender(store)
	assert.Equal(t, recommend.SourceContentBased, r.Name())

	got, err := r.Recommend(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.Equal(t, int64(10), got[0].ItemID)
	assert.Equal(t, recommend.SourceContentBased, got[0].Source)
	require.NotNil(t, got[0].Item)
	assert.Equal(t, "Cat meme", got[0].Item.Title)
}

func TestRecommendColdUsers(t *testing.T) {
	r := newTestRecommender(&fakeStore{history: catHistory()})

	got, err := r.Recommend(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Recommend(context.Background(), 42, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "no history means no content signal")
}

func TestRecommendStoreError(t *testing.T) {
	r := newTestRecommender(&fakeStore{err: errors.New("db down")})
	_, err := r.Recommend(context.Background(), 1, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestTagPreferences(t *testing.T) {
	r := newTestRecommender(&fakeStore{history: catHistory()})

	profile, err := r.TagPreferences(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, profile.InteractionCount)
	assert.InDelta(t, 0.75, profile.Preferences["cats"], 1e-9)
	assert.InDelta(t, 0.25, profile.Preferences["funny"], 1e-9)
	assert.InDelta(t, 0.25, profile.Preferences["politics"], 1e-9)
	assert.NotContains(t, profile.Preferences, "dogs")

	profile, err = r.TagPreferences(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, profile.Preferences)
}

func TestTagPreferenceWeightsIgnoreDuplicateTags(t *testing.T) {
	prefs := calculateTagPreferenceWeights([]TagEvent{
		{Tags: []string{"cats", "cats", ""}},
		{Tags: []string{"dogs"}},
	})
	assert.Equal(t, map[string]float64{"cats": 0.5, "dogs": 0.5}, prefs)
}

func TestEmptyHistory(t *testing.T) {
	assert.Empty(t, calculateTagPreferenceWeights(nil))
}

func TestRecencyFactor(t *testing.T) {
	assert.InDelta(t, 1.0, calculateRecencyFactor(now, now), 1e-9)
	assert.InDelta(t, 0.5, calculateRecencyFactor(now.AddDate(-1, 0, 0), now), 0.01)
	assert.InDelta(t, 1.0, calculateRecencyFactor(now.Add(time.Hour), now), 1e-9, "future timestamps are not boosted")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.CandidatePool = 0
	cfg.TagWeight = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate_pool")
	assert.Contains(t, err.Error(), "weights")
}
