package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "skills.root")
	assert.Contains(t, keys, "watch.debounce")
	assert.Contains(t, keys, "compose.match_floor")
	assert.NotContains(t, keys, "router.roles")
	assert.IsIncreasing(t, keys)
}

func TestIsKnownKey(t *testing.T) {
	assert.True(t, IsKnownKey("router.cache_ttl"))
	assert.True(t, IsKnownKey("ROUTER.CACHE_TTL"))
	assert.False(t, IsKnownKey("router.roles"))
	assert.False(t, IsKnownKey("anthropic.api_key"))
}

func TestLookup(t *testing.T) {
	cfg := Default()
	cfg.Watch.Exclude = []string{"a/**", "*.tmp"}

	got, err := Lookup(cfg, "watch.exclude")
	require.NoError(t, err)
	assert.Equal(t, "a/**,*.tmp", got)

	got, err = Lookup(cfg, "router.cache_ttl")
	require.NoError(t, err)
	assert.Equal(t, "5m0s", got)

	_, err = Lookup(cfg, "nope")
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestSettings(t *testing.T) {
	settings := Settings(Default())
	require.Len(t, settings, len(Keys()))
	for _, s := range settings {
		if s.Key == "log.level" {
			assert.Equal(t, "info", s.Value)
		}
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, SetKey(path, "watch.debounce", "1s"))
	require.NoError(t, SetKey(path, "watch.exclude", "drafts/**, *.bak"))
	require.NoError(t, SetKey(path, "recommend.limit", "7"))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, []string{"drafts/**", "*.bak"}, cfg.Watch.Exclude)
	assert.Equal(t, 7, cfg.Recommend.Limit)

	assert.ErrorIs(t, SetKey(path, "bogus.key", "x"), ErrUnknownKey)
}
