package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"MeanRev/internal/domain/models"
	drepo "MeanRev/internal/domain/repository"
)

// Per-price-unit coefficients for synthetic bar construction. The walk
// step scales with the price level so JPY and BTC pairs move on
// comparable relative terms.
const (
	stepVolRatio  = 0.0005
	openRatio     = 0.0002
	rangeRatio    = 0.0005
	spreadRatio   = 0.0001
	defaultVolume = 1000
)

// Source implements a BarSource backed by a geometric random walk. It
// replaces an exchange feed in demo and test deployments and produces
// one synthetic OHLCV bar per Next call.
type Source struct {
	mu    sync.Mutex
	rng   *rand.Rand
	price map[string]float64
	clock func() time.Time
}

// New creates a simulated bar source. seed fixes the walk for
// reproducible runs; pass 0 for a time-based seed.
func New(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		rng:   rand.New(rand.NewSource(seed)),
		price: make(map[string]float64),
		clock: time.Now,
	}
}

// Reset re-seeds the walk for a pair at the given price.
func (s *Source) Reset(pair string, seedPrice float64) {
	s.mu.Lock()
	s.price[pair] = seedPrice
	s.mu.Unlock()
}

// Next advances the walk one step and returns the resulting bar.
func (s *Source) Next(ctx context.Context, pair string) (models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return models.Bar{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.price[pair]
	if !ok || prev <= 0 {
		prev = 100.0
	}
	price := prev + s.rng.NormFloat64()*stepVolRatio*prev
	if price <= 0 {
		price = prev
	}
	s.price[pair] = price

	return models.Bar{
		Pair:      pair,
		Timestamp: s.clock().UTC(),
		Open:      price - openRatio*price,
		High:      price + rangeRatio*price,
		Low:       price - rangeRatio*price,
		Close:     price,
		Volume:    defaultVolume,
		Spread:    spreadRatio * price,
	}, nil
}

var _ drepo.BarSource = (*Source)(nil)
