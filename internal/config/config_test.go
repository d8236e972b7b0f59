package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actuallystonmai/meme-recommendation-service/internal/hotscore"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 20, cfg.DBPoolSize)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, recommend.PolicySum, cfg.Recommend.Accumulation.Policy)
	assert.Equal(t, 2, cfg.Recommend.ColdStart.MinPreferenceTags)
	assert.InDelta(t, 0.7, cfg.Recommend.Weights.ColdStart[recommend.SourceHot], 1e-9)
	assert.Equal(t, hotscore.DefaultThresholds(), cfg.HotScore)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RECOMMEND_ACCUMULATION_POLICY", "decay")
	t.Setenv("RECOMMEND_SOURCE_TIMEOUT", "750ms")
	t.Setenv("HOT_SCORE_VIRAL", "2500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, recommend.PolicyDecay, cfg.Recommend.Accumulation.Policy)
	assert.Equal(t, 750*time.Millisecond, cfg.Recommend.SourceTimeout)
	assert.InDelta(t, 2500, cfg.HotScore.Viral, 1e-9)
	assert.InDelta(t, 500, cfg.HotScore.Trending, 1e-9)
}

func TestLoadFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7070\nrecommend:\n  social:\n    follow_affinity: 0.35\n"), 0o600))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.InDelta(t, 0.35, cfg.Recommend.Social.FollowAffinity, 1e-9)
}

func TestLoadRejectsInvalid(t *testing.T) {
	chdirTemp(t)
	t.Setenv("RECOMMEND_ACCUMULATION_POLICY", "forever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accumulation policy")
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Port = 0
	cfg.Recommend.IntentWeights.View = 5
	cfg.HotScore.Hot = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "hot_score")
	assert.Contains(t, err.Error(), "intent weights")
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "log.level", envTransformFunc("LOG_LEVEL"))
	assert.Equal(t, "recommend.cold_start.min_preference_tags", envTransformFunc("RECOMMEND_COLD_START_MIN_TAGS"))
	assert.Equal(t, "", envTransformFunc("HOME"))
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}
