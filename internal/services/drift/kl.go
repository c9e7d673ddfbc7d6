package drift

import (
	"fmt"
	"math"
)

// klEpsilon clips distribution entries away from zero before the
// logarithm and the renormalization.
const klEpsilon = 1e-10

// KLDivergence computes Σ P ln(P/Q) between two discrete distributions
// of equal length. Each entry is clipped to [1e-10, 1] and both vectors
// are renormalized to sum to 1 before the divergence is taken. Used to
// compare a live feature distribution against the baseline captured at
// training time.
func KLDivergence(current, baseline []float64) (float64, error) {
	if len(current) == 0 || len(current) != len(baseline) {
		return 0, fmt.Errorf("distribution lengths differ: %d vs %d", len(current), len(baseline))
	}
	p := clipNormalize(current)
	q := clipNormalize(baseline)

	kl := 0.0
	for i := range p {
		kl += p[i] * math.Log(p[i]/q[i])
	}
	return kl, nil
}

// EntropyDistribution bins the retained entropies into a histogram of
// the given shape, normalized to sum to 1. Entropies at or above max
// land in the last bin. Returns nil while the buffer is empty.
func (m *Monitor) EntropyDistribution(bins int, max float64) []float64 {
	if bins <= 0 || max <= 0 || m.entropies.size == 0 {
		return nil
	}
	hist := make([]float64, bins)
	for _, e := range m.entropies.values() {
		idx := int(e / max * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		hist[idx]++
	}
	total := float64(m.entropies.size)
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

func clipNormalize(dist []float64) []float64 {
	out := make([]float64, len(dist))
	sum := 0.0
	for i, v := range dist {
		if v < klEpsilon {
			v = klEpsilon
		}
		if v > 1.0 {
			v = 1.0
		}
		out[i] = v
		sum += v
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
