package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var _ Limiter = (*Memory)(nil)

func TestMemory_BlocksAfterMaxFails(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute})
	m.now = func() time.Time { return now }
	ip := HashIP("10.0.0.1:5000")

	ok, _, err := m.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 2; i++ {
		blocked, _, err := m.Failure(ctx, "alice", ip)
		require.NoError(t, err)
		require.False(t, blocked)
	}
	blocked, dur, err := m.Failure(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)

	ok, wait, err := m.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 10*time.Minute, wait)

	// other user from the same address is unaffected
	ok, _, _ = m.Allow(ctx, "bob", ip)
	require.True(t, ok)

	now = now.Add(11 * time.Minute)
	ok, _, _ = m.Allow(ctx, "alice", ip)
	require.True(t, ok)
}

func TestMemory_WindowResetsAndSuccessClears(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Hour})
	m.now = func() time.Time { return now }
	ip := HashIP("10.0.0.2")

	blocked, _, _ := m.Failure(ctx, "alice", ip)
	require.False(t, blocked)

	now = now.Add(2 * time.Minute)
	blocked, _, _ = m.Failure(ctx, "alice", ip)
	require.False(t, blocked, "stale failure must not count")

	require.NoError(t, m.Success(ctx, "alice", ip))
	blocked, _, _ = m.Failure(ctx, "alice", ip)
	require.False(t, blocked, "success must reset counters")
}
