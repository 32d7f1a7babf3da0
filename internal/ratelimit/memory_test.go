package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	m := NewMemoryLimiter(1, 3)
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, err := m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	m := NewMemoryLimiter(1, 1)
	defer m.Close()
	ctx := context.Background()

	ok, err := m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.False(t, ok)

	// A different address still has a full bucket.
	ok, err = m.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	var n NoopLimiter
	for i := 0; i < 100; i++ {
		ok, err := n.Allow(context.Background(), "any")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, n.Close())
}
