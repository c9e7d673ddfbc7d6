package simulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextProducesConsistentBar(t *testing.T) {
	s := New(42)
	s.Reset("EURUSD", 1.10)

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		bar, err := s.Next(ctx, "EURUSD")
		require.NoError(t, err)
		assert.Equal(t, "EURUSD", bar.Pair)
		assert.Greater(t, bar.Close, 0.0)
		assert.GreaterOrEqual(t, bar.High, bar.Low)
		assert.GreaterOrEqual(t, bar.High, bar.Close)
		assert.LessOrEqual(t, bar.Low, bar.Close)
		assert.Greater(t, bar.Spread, 0.0)
		assert.Equal(t, 1000.0, bar.Volume)
	}
}

func TestWalkIsReproducible(t *testing.T) {
	a := New(7)
	a.Reset("EURUSD", 1.10)
	b := New(7)
	b.Reset("EURUSD", 1.10)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		ba, err := a.Next(ctx, "EURUSD")
		require.NoError(t, err)
		bb, err := b.Next(ctx, "EURUSD")
		require.NoError(t, err)
		assert.Equal(t, ba.Close, bb.Close)
	}
}

func TestUnknownPairDefaultsPrice(t *testing.T) {
	s := New(1)
	bar, err := s.Next(context.Background(), "XAUUSD")
	require.NoError(t, err)
	// unseeded pairs start near the 100 default
	assert.InDelta(t, 100.0, bar.Close, 1.0)
}

func TestResetReseedsWalk(t *testing.T) {
	s := New(1)
	s.Reset("USDJPY", 150.0)
	bar, err := s.Next(context.Background(), "USDJPY")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, bar.Close, 1.0)
}

func TestNextHonorsContext(t *testing.T) {
	s := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Next(ctx, "EURUSD")
	assert.Error(t, err)
}
