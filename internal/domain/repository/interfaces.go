package repository

import (
	"context"
	"time"

	"MeanRev/internal/domain/models"
)

// BarSource produces one bar per tick for an instrument, either pulled
// from storage or pushed by a simulator/feed.
type BarSource interface {
	Next(ctx context.Context, pair string) (models.Bar, error)
	// Reset re-seeds the source for a new instrument at the given price.
	Reset(pair string, seedPrice float64)
}

// BarStore persists OHLCV bars and serves history reads.
type BarStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, bar models.Bar) error
	StoreBatch(ctx context.Context, bars []models.Bar) error
	LatestN(ctx context.Context, pair string, n int) ([]models.Bar, error)
	Range(ctx context.Context, pair string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error
	Close() error
}

// PriceCache caches the latest price and decision snapshot per pair.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64) error
	GetPrice(ctx context.Context, pair string) (float64, error)
	SetDecision(ctx context.Context, d *models.Decision) error
	GetDecision(ctx context.Context, pair string) (*models.Decision, error)
	InvalidateDecision(ctx context.Context, pair string) error
}

// Publisher fans per-tick topic messages out to a decision stream.
// Implementations must not block the pipeline clock; a slow consumer is
// skipped and logged.
type Publisher interface {
	Publish(ctx context.Context, pair string, msg models.TopicMessage) error
	Close() error
}

// Metrics records operational measurements for the pipeline.
type Metrics interface {
	RecordTick(pair string)
	RecordSignal(pair, action string)
	RecordError(kind string)
	RecordLastPrice(pair string, price float64)
	RecordStageLatency(stage string, seconds float64)
	RecordDrawdown(pair string, dd float64)
}
