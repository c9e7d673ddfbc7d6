package features

import (
	"sort"
	"time"

	"MeanRev/internal/domain/models"
)

// todNormalizer divides a raw metric by its time-of-day baseline: the
// expanding median of the metric observed at the same minute-of-day on
// prior occurrences. The current observation never feeds its own
// baseline, so the ratio is causal. With no prior history the ratio
// defaults to 1.0 (normal).
type todNormalizer struct {
	byMinute map[int][]float64 // sorted observations per minute-of-day
}

func newTODNormalizer() *todNormalizer {
	return &todNormalizer{byMinute: make(map[int][]float64)}
}

// Normalize returns raw divided by the minute-of-day baseline and then
// records raw for future baselines.
func (n *todNormalizer) Normalize(ts time.Time, raw float64) float64 {
	if !models.IsDefined(raw) {
		return models.Undefined()
	}
	minute := ts.Hour()*60 + ts.Minute()
	obs := n.byMinute[minute]

	rel := 1.0
	if len(obs) > 0 {
		baseline := sortedMedian(obs)
		if baseline != 0 {
			rel = raw / baseline
		}
	}

	idx := sort.SearchFloat64s(obs, raw)
	obs = append(obs, 0)
	copy(obs[idx+1:], obs[idx:])
	obs[idx] = raw
	n.byMinute[minute] = obs

	return rel
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
