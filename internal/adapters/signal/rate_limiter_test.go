package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageRateLimiter(t *testing.T) {
	rl := NewMessageRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow(), "attempt %d inside limit", i)
	}
	assert.False(t, rl.Allow(), "fourth attempt blocked")
}

func TestMessageRateLimiterWindowSlides(t *testing.T) {
	rl := NewMessageRateLimiter(2, 10*time.Millisecond)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, rl.Allow(), "window expired, attempts allowed again")
}
