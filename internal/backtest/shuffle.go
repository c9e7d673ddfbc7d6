package backtest

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	applogger "MeanRev/pkg/logger"
)

// Annualization factor for minute bars.
const minutesPerYear = 252 * 1440

// sharpeCollapseLimit is the absolute annualized Sharpe a shuffled
// return series may reach before the run is flagged.
const sharpeCollapseLimit = 1.0

// ShuffleResult reports the Sharpe of a permuted return series. A
// genuine edge disappears under permutation; a surviving Sharpe points
// at look-ahead leakage in the feature path.
type ShuffleResult struct {
	Sharpe float64 `json:"sharpe"`
	Passed bool    `json:"passed"`
}

// ShuffleTest permutes the returns uniformly and recomputes the
// annualized Sharpe ratio.
func ShuffleTest(returns []float64, seed int64, l *applogger.Logger) (*ShuffleResult, error) {
	if len(returns) < 2 {
		return nil, fmt.Errorf("shuffle test needs at least 2 returns, got %d", len(returns))
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	shuffled := make([]float64, len(returns))
	copy(shuffled, returns)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	sharpe := annualizedSharpe(shuffled)
	res := &ShuffleResult{Sharpe: sharpe, Passed: math.Abs(sharpe) <= sharpeCollapseLimit}
	if res.Passed {
		l.Info("shuffle test passed", applogger.Any("sharpe", sharpe))
	} else {
		l.Warn("high sharpe on shuffled data, check for look-ahead bias",
			applogger.Any("sharpe", sharpe))
	}
	return res, nil
}

func annualizedSharpe(returns []float64) float64 {
	n := float64(len(returns))
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / n

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / (n - 1))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(minutesPerYear)
}
