package drift

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICZeroBelowMinimumSamples(t *testing.T) {
	m := NewMonitor(Config{})
	for i := 0; i < 29; i++ {
		m.Update(0.001, 0.002, 0.5)
	}
	assert.Equal(t, 0.0, m.InformationCoefficient())
}

func TestICPerfectCorrelation(t *testing.T) {
	m := NewMonitor(Config{Window: 500})
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 150; i++ {
		p := rng.NormFloat64() * 0.001
		m.Update(p, 2*p, 0.4)
	}

	assert.InDelta(t, 1.0, m.InformationCoefficient(), 1e-9)

	for _, a := range m.Alerts() {
		assert.False(t, strings.Contains(a, "Reduce Allocation"), "unexpected alert %q", a)
		assert.False(t, strings.Contains(a, "Decommission"), "unexpected alert %q", a)
	}
}

func TestICZeroVariance(t *testing.T) {
	m := NewMonitor(Config{})
	for i := 0; i < 50; i++ {
		m.Update(0.001, float64(i)*0.0001, 0.4)
	}
	assert.Equal(t, 0.0, m.InformationCoefficient())
}

func TestAlertsLowIC(t *testing.T) {
	m := NewMonitor(Config{AlertSamples: 30})
	rng := rand.New(rand.NewSource(3))
	// uncorrelated noise: IC hovers near zero, below the reduce threshold
	for i := 0; i < 200; i++ {
		m.Update(rng.NormFloat64(), rng.NormFloat64(), 0.4)
	}

	ic := m.InformationCoefficient()
	if ic < 0.02 {
		alerts := m.Alerts()
		require.NotEmpty(t, alerts)
		assert.Contains(t, alerts[0], "Reduce Allocation")
	}
}

func TestAlertsHighEntropy(t *testing.T) {
	m := NewMonitor(Config{})
	for i := 0; i < 10; i++ {
		m.Update(0, 0, 2.0)
	}
	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "Suspend Trading")
}

func TestAverageEntropy(t *testing.T) {
	m := NewMonitor(Config{})
	assert.Equal(t, 0.0, m.AverageEntropy())
	m.Update(0, 0, 0.4)
	m.Update(0, 0, 0.8)
	assert.InDelta(t, 0.6, m.AverageEntropy(), 1e-12)
}

func TestRingSlidesWindow(t *testing.T) {
	m := NewMonitor(Config{Window: 10})
	for i := 0; i < 25; i++ {
		m.Update(float64(i), float64(i), 0.1)
	}
	assert.Equal(t, 10, m.Samples())
	vals := m.predictions.values()
	assert.Equal(t, 15.0, vals[0])
	assert.Equal(t, 24.0, vals[len(vals)-1])
}

func TestKLDivergenceSelf(t *testing.T) {
	p := []float64{0.2, 0.3, 0.5}
	kl, err := KLDivergence(p, p)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, kl, 1e-12)
}

func TestKLDivergencePositive(t *testing.T) {
	kl, err := KLDivergence([]float64{0.9, 0.05, 0.05}, []float64{0.1, 0.45, 0.45})
	require.NoError(t, err)
	assert.Greater(t, kl, 0.0)
}

func TestKLDivergenceLengthMismatch(t *testing.T) {
	_, err := KLDivergence([]float64{0.5, 0.5}, []float64{1.0})
	assert.Error(t, err)
	_, err = KLDivergence(nil, nil)
	assert.Error(t, err)
}

func TestEntropyDistribution(t *testing.T) {
	m := NewMonitor(Config{})
	assert.Nil(t, m.EntropyDistribution(10, math.Log(3)))

	for i := 0; i < 100; i++ {
		m.Update(0, 0, float64(i)/100*math.Log(3))
	}
	hist := m.EntropyDistribution(10, math.Log(3))
	require.Len(t, hist, 10)
	sum := 0.0
	for _, h := range hist {
		sum += h
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	// entropies at or above max land in the last bin
	m2 := NewMonitor(Config{})
	m2.Update(0, 0, 5.0)
	hist2 := m2.EntropyDistribution(4, math.Log(3))
	assert.Equal(t, 1.0, hist2[3])
}
