package repository

import (
	"context"
	"fmt"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	pkgcache "MeanRev/pkg/cache"
)

const (
	priceKeyPrefix    = "price"
	decisionKeyPrefix = "decision"
	priceTTL          = 5 * time.Minute
	decisionTTL       = 5 * time.Minute
)

// CachePriceStore implements PriceCache over the shared cache service
// (Redis in production, in-memory in tests).
type CachePriceStore struct {
	cache pkgcache.Service
}

func NewCachePriceStore(cache pkgcache.Service) *CachePriceStore {
	return &CachePriceStore{cache: cache}
}

func (c *CachePriceStore) SetPrice(ctx context.Context, pair string, price float64) error {
	return c.cache.Set(ctx, pkgcache.GenerateKey(priceKeyPrefix, pair), price, priceTTL)
}

func (c *CachePriceStore) GetPrice(ctx context.Context, pair string) (float64, error) {
	var price float64
	if err := c.cache.Get(ctx, pkgcache.GenerateKey(priceKeyPrefix, pair), &price); err != nil {
		return 0, err
	}
	return price, nil
}

func (c *CachePriceStore) SetDecision(ctx context.Context, d *models.Decision) error {
	if d == nil {
		return fmt.Errorf("nil decision")
	}
	return c.cache.Set(ctx, pkgcache.GenerateKey(decisionKeyPrefix, d.Pair), d, decisionTTL)
}

func (c *CachePriceStore) GetDecision(ctx context.Context, pair string) (*models.Decision, error) {
	var d models.Decision
	if err := c.cache.Get(ctx, pkgcache.GenerateKey(decisionKeyPrefix, pair), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// InvalidateDecision drops the cached snapshot so a pair switch never
// serves the outgoing instrument's decision.
func (c *CachePriceStore) InvalidateDecision(ctx context.Context, pair string) error {
	return c.cache.Delete(ctx, pkgcache.GenerateKey(decisionKeyPrefix, pair))
}

var _ domrepo.PriceCache = (*CachePriceStore)(nil)
