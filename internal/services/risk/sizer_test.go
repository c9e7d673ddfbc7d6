package risk

import (
	"testing"

	"MeanRev/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawdownThrottle(t *testing.T) {
	s := NewSizer(Config{InitialEquity: 10000}, nil)

	// ratchet the mark up, then fall back
	s.UpdateEquity(10500)
	require.Equal(t, 10500.0, s.State().HighWaterMark)
	assert.Equal(t, 0.0, s.State().CurrentDrawdown)

	s.UpdateEquity(10000)
	dd := s.State().CurrentDrawdown
	assert.InDelta(t, 0.047619, dd, 1e-5)
	assert.Equal(t, 0.50, s.ThrottleModifier())
}

func TestThrottleBreakpoints(t *testing.T) {
	cases := []struct {
		name   string
		equity float64
		want   float64
	}{
		{"no_drawdown", 10000, 1.0},
		{"below_soft", 9800, 1.0},
		{"past_soft", 9600, 0.50},
		{"past_hard", 9400, 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSizer(Config{InitialEquity: 10000}, nil)
			s.UpdateEquity(tc.equity)
			assert.Equal(t, tc.want, s.ThrottleModifier())
		})
	}
}

func TestSizeFormula(t *testing.T) {
	s := NewSizer(Config{InitialEquity: 10000, VolTarget: 0.15}, nil)
	sig := &models.Signal{Action: models.ActionBuy}

	// (10000 * 0.15) / (1.10 * 0.001), no throttle
	got := s.Size(sig, 1.10, 0.001)
	assert.InDelta(t, 1363636.36, got, 0.01)
}

func TestSizeNilSignal(t *testing.T) {
	s := NewSizer(Config{}, nil)
	assert.Equal(t, 0.0, s.Size(nil, 1.10, 0.001))
}

func TestSizeVolFloor(t *testing.T) {
	s := NewSizer(Config{InitialEquity: 10000, VolTarget: 0.15}, nil)
	sig := &models.Signal{Action: models.ActionBuy}

	// near-zero volatility substitutes the 0.01 default
	got := s.Size(sig, 1.0, 0)
	assert.InDelta(t, (10000*0.15)/(1.0*0.01), got, 1e-6)
}

func TestSizeBadPrice(t *testing.T) {
	s := NewSizer(Config{}, nil)
	sig := &models.Signal{Action: models.ActionSell}
	assert.Equal(t, 0.0, s.Size(sig, 0, 0.001))
	assert.Equal(t, 0.0, s.Size(sig, -5, 0.001))
}

func TestSizeThrottled(t *testing.T) {
	s := NewSizer(Config{InitialEquity: 10000, VolTarget: 0.15}, nil)
	s.UpdateEquity(9400) // past the hard breakpoint
	sig := &models.Signal{Action: models.ActionBuy}

	got := s.Size(sig, 1.0, 0.01)
	want := (9400.0 * 0.15) / (1.0 * 0.01) * 0.25
	assert.InDelta(t, want, got, 1e-6)
}

func TestDrawdownNeverNegative(t *testing.T) {
	s := NewSizer(Config{InitialEquity: 10000}, nil)
	s.UpdateEquity(12000)
	assert.Equal(t, 0.0, s.State().CurrentDrawdown)
	assert.Equal(t, 12000.0, s.State().HighWaterMark)
}
