package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllow_EnforcesLimitPerSource(t *testing.T) {
	rl := NewFixedWindowRateLimiter(2, time.Minute)
	defer rl.Close()

	ok, _ := rl.Allow("10.0.0.1")
	require.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	require.True(t, ok)

	ok, retryAfter := rl.Allow("10.0.0.1")
	require.False(t, ok)
	require.Greater(t, retryAfter, time.Duration(0))

	// a different source has its own window
	ok, _ = rl.Allow("10.0.0.2")
	require.True(t, ok)
}

func TestAllow_WindowResets(t *testing.T) {
	rl := NewFixedWindowRateLimiter(1, 20*time.Millisecond)
	defer rl.Close()

	ok, _ := rl.Allow("10.0.0.1")
	require.True(t, ok)
	ok, _ = rl.Allow("10.0.0.1")
	require.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	ok, _ = rl.Allow("10.0.0.1")
	require.True(t, ok)
}
