package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheRoundTrip(t *testing.T) {
	c := NewTTLCache()
	require.NoError(t, c.SetBytes("history:EURUSD:200", []byte(`[{"o":1.1}]`), time.Minute))

	b, ok, err := c.GetBytes("history:EURUSD:200")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"o":1.1}]`, string(b))
}

func TestTTLCacheMiss(t *testing.T) {
	c := NewTTLCache()
	_, ok, err := c.GetBytes("history:USDJPY:200")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()
	require.NoError(t, c.SetBytes("k", []byte("v"), time.Nanosecond))
	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()
	require.NoError(t, c.SetBytes("k", []byte("v"), 0))

	_, ok, err := c.GetBytes("k")
	require.NoError(t, err)
	assert.True(t, ok)
}
