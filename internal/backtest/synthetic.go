package backtest

import (
	"math"
	"math/rand"
	"time"

	"MeanRev/internal/domain/models"
)

// GenerateSynthetic produces n random-walk OHLCV bars ending at the
// current minute, one bar per minute. Used to feed validation runs when
// no stored history is available.
func GenerateSynthetic(n int, seed int64) []models.Bar {
	if n <= 0 {
		return nil
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	now := time.Now().UTC().Truncate(time.Minute)

	bars := make([]models.Bar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += rng.NormFloat64() * 0.1
		if price <= 1.0 {
			price = 1.0
		}
		high := price + math.Abs(rng.NormFloat64()*0.05)
		low := price - math.Abs(rng.NormFloat64()*0.05)
		if low <= 0 {
			low = price * 0.99
		}
		close := price + rng.NormFloat64()*0.02
		if close <= 0 {
			close = price
		}
		if close > high {
			high = close
		}
		if close < low {
			low = close
		}
		bars[i] = models.Bar{
			Pair:      "SYNTH0",
			Timestamp: now.Add(-time.Duration(n-i) * time.Minute),
			Open:      price,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(100 + rng.Intn(900)),
			Spread:    math.Abs(rng.NormFloat64()*0.005 + 0.01),
		}
	}
	return bars
}
