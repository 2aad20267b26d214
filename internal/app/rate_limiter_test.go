package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow(1))
	assert.True(t, rl.Allow(1))
	assert.False(t, rl.Allow(1))
	assert.True(t, rl.Allow(2), "other users have their own window")

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, rl.Allow(1))

	rl.Forget(1)
	assert.True(t, rl.Allow(1))
}

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow(1))

	rl := NewRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow(1))
	}
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, KickMember, PolicyFor("kick").OnBackPressure(nil))
	assert.Equal(t, DropFrame, PolicyFor("drop").OnBackPressure(nil))
	assert.Equal(t, DropFrame, PolicyFor("").OnBackPressure(nil))
}
