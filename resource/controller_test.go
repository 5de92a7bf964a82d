package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Queries(t *testing.T) {
	c := NewController(Config{MaxConcurrentQueries: 2})

	r1, err := c.AcquireQuery(t.Context())
	require.NoError(t, err)
	r2, err := c.TryAcquireQuery()
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.InFlight())

	_, err = c.TryAcquireQuery()
	assert.ErrorIs(t, err, ErrBusy)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = c.AcquireQuery(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r1()
	assert.Equal(t, int64(1), c.InFlight(), "release is idempotent")

	r3, err := c.TryAcquireQuery()
	require.NoError(t, err)
	r2()
	r3()
	assert.Zero(t, c.InFlight())
}

func TestController_UnlimitedQueries(t *testing.T) {
	c := NewController(Config{})
	var releases []func()
	for range 100 {
		r, err := c.TryAcquireQuery()
		require.NoError(t, err)
		releases = append(releases, r)
	}
	assert.Equal(t, int64(100), c.InFlight())
	assert.Zero(t, c.MaxConcurrentQueries())
	for _, r := range releases {
		r()
	}
	assert.Zero(t, c.InFlight())
}

func TestController_Rate(t *testing.T) {
	c := NewController(Config{QueriesPerSecond: 1, Burst: 2})

	for range 2 {
		r, err := c.TryAcquireQuery()
		require.NoError(t, err)
		r()
	}
	_, err := c.TryAcquireQuery()
	assert.ErrorIs(t, err, ErrRateLimited)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = c.AcquireQuery(ctx)
	assert.Error(t, err)
}

func TestController_Background(t *testing.T) {
	c := NewController(Config{MaxBackgroundWorkers: 2})

	require.NoError(t, c.AcquireBackground(t.Context()))
	require.NoError(t, c.AcquireBackground(t.Context()))
	assert.False(t, c.TryAcquireBackground())

	c.ReleaseBackground()
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
	c.ReleaseBackground()
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	r, err := c.AcquireQuery(t.Context())
	require.NoError(t, err)
	r()
	r, err = c.TryAcquireQuery()
	require.NoError(t, err)
	r()
	assert.Zero(t, c.InFlight())
	assert.Zero(t, c.MaxConcurrentQueries())

	require.NoError(t, c.AcquireBackground(t.Context()))
	assert.True(t, c.TryAcquireBackground())
	c.ReleaseBackground()
}
