package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryIdempotencyStore(time.Hour)
	s.now = func() time.Time { return now }

	ok, err := s.TryLock(ctx, "+91999", "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = s.TryLock(ctx, "+91999", "k1")
	assert.False(t, ok, "held")
	ok, _ = s.TryLock(ctx, "+91888", "k1")
	assert.True(t, ok, "keys are scoped")

	require.NoError(t, s.Remember(ctx, "+91999", "k1", "ORD-1"))
	v, found, err := s.Recall(ctx, "+91999", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ORD-1", v)

	require.NoError(t, s.Release(ctx, "+91999", "k1"))
	ok, _ = s.TryLock(ctx, "+91999", "k1")
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, found, _ = s.Recall(ctx, "+91999", "k1")
	assert.False(t, found, "expired")
}
