package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowExhaustsBurst(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("1.2.3.4:history", 5, 2), "request %d should pass", i)
	}
	assert.False(t, l.Allow("1.2.3.4:history", 5, 2))
}

func TestAllowRefillsOverTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		l.Allow("9.9.9.9:backtest", 2, 0.2)
	}
	assert.False(t, l.Allow("9.9.9.9:backtest", 2, 0.2))

	// 0.2 tokens/s needs 5s for the next request
	now = now.Add(5 * time.Second)
	assert.True(t, l.Allow("9.9.9.9:backtest", 2, 0.2))
}

func TestAllowKeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a:history", 1, 1))
	assert.False(t, l.Allow("a:history", 1, 1))
	assert.True(t, l.Allow("b:history", 1, 1))
}
