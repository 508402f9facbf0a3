package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheReturnsStoredPayload(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	cache.Set("summary", []byte(`{"critical":1}`))

	payload, ok := cache.Get("summary")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"critical":1}`), payload)
}

func TestCacheMissOnUnknownKey(t *testing.T) {
	cache := NewResponseCache(time.Minute)

	_, ok := cache.Get("nope")
	assert.False(t, ok)
}

func TestCacheExpiresEntries(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.Set("summary", []byte("payload"))

	current = current.Add(59 * time.Second)
	_, ok := cache.Get("summary")
	assert.True(t, ok)

	current = current.Add(2 * time.Second)
	_, ok = cache.Get("summary")
	assert.False(t, ok)

	// The expired entry is gone even if the clock moves back.
	current = current.Add(-time.Minute)
	_, ok = cache.Get("summary")
	assert.False(t, ok)
}

func TestCacheExplicitTTLOverridesDefault(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.SetWithTTL("metrics", []byte("payload"), time.Hour)

	current = current.Add(30 * time.Minute)
	_, ok := cache.Get("metrics")
	assert.True(t, ok)

	current = current.Add(31 * time.Minute)
	_, ok = cache.Get("metrics")
	assert.False(t, ok)
}

func TestCacheSetReplacesEntry(t *testing.T) {
	cache := NewResponseCache(time.Minute)
	cache.Set("trends:7d", []byte("old"))
	cache.Set("trends:7d", []byte("new"))

	payload, ok := cache.Get("trends:7d")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), payload)
}
