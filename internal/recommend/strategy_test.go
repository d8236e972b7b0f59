package recommend

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdjuster(catalog *fakeCatalog) *StrategyAdjuster {
	users := &fakeUsers{ids: []int64{newUser, establishedUser, sparseUser}}
	return NewStrategyAdjuster(DefaultConfig(), users, &fakePrefs{profiles: testProfiles()}, catalog, testClassifier(), zerolog.Nop())
}

func TestAdjustStrategyFocus(t *testing.T) {
	s := newTestAdjuster(mixedCatalog())

	tests := []struct {
		name     string
		behavior Behavior
		focus    string
		check    func(t *testing.T, w WeightProfile)
	}{
		{
			name:     "high engagement, low clicks",
			behavior: Behavior{ClickRate: 0.2, EngagementRate: 0.8, DiversityPreference: 0.3},
			focus:    FocusSocial,
			check: func(t *testing.T, w WeightProfile) {
				assert.Greater(t, w[SourceSocial], 0.2)
			},
		},
		{
			name:     "high diversity preference",
			behavior: Behavior{ClickRate: 0.3, EngagementRate: 0.4, DiversityPreference: 0.9},
			focus:    FocusExploration,
			check: func(t *testing.T, w WeightProfile) {
				assert.Greater(t, w[SourceLatest], 0.2)
			},
		},
		{
			name:     "balanced behaviour",
			behavior: Behavior{ClickRate: 0.4, EngagementRate: 0.7, DiversityPreference: 0.8},
			focus:    FocusPersonalization,
			check: func(t *testing.T, w WeightProfile) {
				assert.Greater(t, w[SourceContentBased]+w[SourceCollaborative], w[SourceHot]+w[SourceLatest])
			},
		},
		{
			name:     "social rule is checked before exploration",
			behavior: Behavior{ClickRate: 0.1, EngagementRate: 0.9, DiversityPreference: 0.95},
			focus:    FocusSocial,
			check:    func(*testing.T, WeightProfile) {},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := s.AdjustStrategy(context.Background(), establishedUser, tt.behavior)
			require.NoError(t, err)
			assert.Equal(t, tt.focus, adj.Focus)
			assert.False(t, adj.ColdStartHandling.Applied)
			tt.check(t, adj.Weights)
		})
	}
}

func TestAdjustStrategyColdStartHandling(t *testing.T) {
	s := newTestAdjuster(mixedCatalog())

	for _, b := range []Behavior{
		{ClickRate: 0.2, EngagementRate: 0.8, DiversityPreference: 0.3},
		{ClickRate: 0.3, EngagementRate: 0.4, DiversityPreference: 0.9},
		{ClickRate: 0.5, EngagementRate: 0.5, DiversityPreference: 0.5},
	} {
		adj, err := s.AdjustStrategy(context.Background(), newUser, b)
		require.NoError(t, err)
		assert.True(t, adj.ColdStartHandling.Applied)
		assert.Equal(t, ReasonNoPreferences, adj.ColdStartHandling.Status.Reason)
		assert.Equal(t, 0.0, adj.Weights[SourceContentBased])
		assert.GreaterOrEqual(t, adj.Weights[SourceHot], 0.6)

		var sum float64
		for _, w := range adj.Weights {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestAdjustStrategyDoesNotMutateConfig(t *testing.T) {
	s := newTestAdjuster(mixedCatalog())
	before := s.cfg.Strategy.Social.Clone()

	_, err := s.AdjustStrategy(context.Background(), newUser, Behavior{ClickRate: 0.2, EngagementRate: 0.8})
	require.NoError(t, err)
	assert.Equal(t, before, s.cfg.Strategy.Social)
}

func TestAdjustStrategyRejectsInvalidBehavior(t *testing.T) {
	s := newTestAdjuster(mixedCatalog())
	_, err := s.AdjustStrategy(context.Background(), establishedUser, Behavior{ClickRate: 1.5})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestAlgorithmStatsAnonymous(t *testing.T) {
	catalog := newCatalog(meme(1, 10), meme(2, 150), meme(3, 600), meme(4, 1200))
	s := newTestAdjuster(catalog)

	stats, err := s.AlgorithmStats(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalMemes)
	assert.Equal(t, 3, stats.HotMemes)
	assert.Equal(t, 2, stats.TrendingMemes)
	assert.Equal(t, 1, stats.ViralMemes)
	assert.Nil(t, stats.UserActivity)
	assert.Nil(t, stats.ColdStart)

	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	var keys map[string]any
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.NotContains(t, keys, "user_activity")
	assert.NotContains(t, keys, "cold_start")
	assert.Contains(t, keys, "total_memes")
}

func TestAlgorithmStatsForUser(t *testing.T) {
	s := newTestAdjuster(mixedCatalog())

	stats, err := s.AlgorithmStats(context.Background(), establishedUser)
	require.NoError(t, err)
	require.NotNil(t, stats.UserActivity)
	require.NotNil(t, stats.ColdStart)
	assert.Equal(t, 12, stats.UserActivity.InteractionCount)
	assert.False(t, stats.ColdStart.IsColdStart)
	assert.Equal(t, []TagPreference{
		{Tag: "funny", Weight: 0.8},
		{Tag: "meme", Weight: 0.7},
		{Tag: "viral", Weight: 0.6},
	}, stats.UserPreferences)

	raw, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"user_activity"`)
	assert.Contains(t, string(raw), `"cold_start"`)
}

func TestApplyColdStart(t *testing.T) {
	w := WeightProfile{SourceHot: 0.2, SourceContentBased: 0.4, SourceCollaborative: 0.3, SourceSocial: 0.1}.applyColdStart(0.65)
	assert.Equal(t, 0.0, w[SourceContentBased])
	assert.InDelta(t, 0.65, w[SourceHot], 1e-9)
	assert.InDelta(t, 0.35*0.75, w[SourceCollaborative], 1e-9)
	assert.InDelta(t, 0.35*0.25, w[SourceSocial], 1e-9)

	// already dominant hot is only renormalised
	w = WeightProfile{SourceHot: 0.7, SourceCollaborative: 0.2, SourceSocial: 0.1}.applyColdStart(0.65)
	assert.InDelta(t, 0.7, w[SourceHot], 1e-9)

	w = WeightProfile{}.applyColdStart(0.65)
	assert.Equal(t, 1.0, w[SourceHot])
}
