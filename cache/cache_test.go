package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsheth/graphcache/cache"
	"github.com/samsheth/graphcache/record"
)

func TestDehydrateHydrate_RoundTrip(t *testing.T) {
	c := cache.New(cache.Config{})

	heroID, err := record.EntityID("Character", "1")
	require.NoError(t, err)
	_ = heroID

	d := c.Dehydrate()
	require.Empty(t, d.Records)

	c2 := cache.New(cache.Config{})
	require.NoError(t, c2.Hydrate(d, cache.HydrateOptions{}))
	require.Equal(t, c.Keys(), c2.Keys())
}

func TestIsHydrating_WindowExpiresAfterTimeout(t *testing.T) {
	c := cache.New(cache.Config{HydrationTimeout: 20 * time.Millisecond})

	require.False(t, c.IsHydrating())
	require.NoError(t, c.Hydrate(cache.Dehydration{}, cache.HydrateOptions{}))
	require.True(t, c.IsHydrating())

	time.Sleep(40 * time.Millisecond)
	require.False(t, c.IsHydrating())
}

func TestIsHydrating_SuspensionTimeoutCapsPerCallTimeout(t *testing.T) {
	c := cache.New(cache.Config{SuspensionTimeout: 10 * time.Millisecond})

	require.NoError(t, c.Hydrate(cache.Dehydration{}, cache.HydrateOptions{Timeout: time.Hour}))
	require.True(t, c.IsHydrating())

	time.Sleep(30 * time.Millisecond)
	require.False(t, c.IsHydrating(), "suspension timeout should have capped the requested 1h window")
}
