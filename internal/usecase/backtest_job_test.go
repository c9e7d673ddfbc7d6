package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"MeanRev/internal/backtest"
	"MeanRev/internal/domain/models"
	"MeanRev/internal/services/features"
	pkgcache "MeanRev/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusCache records every status snapshot written for a key.
type statusCache struct {
	mu      sync.Mutex
	history map[string][]json.RawMessage
	locks   map[string]bool
}

func newStatusCache() *statusCache {
	return &statusCache{history: map[string][]json.RawMessage{}, locks: map[string]bool{}}
}

func (c *statusCache) Set(ctx context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.history[key] = append(c.history[key], data)
	c.mu.Unlock()
	return nil
}

func (c *statusCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	snaps := c.history[key]
	if len(snaps) == 0 {
		return pkgcache.ErrCacheMiss
	}
	return json.Unmarshal(snaps[len(snaps)-1], dest)
}

func (c *statusCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.history, key)
	}
	c.mu.Unlock()
	return nil
}

func (c *statusCache) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] {
		return false, nil
	}
	c.locks[key] = true
	return true, nil
}

func (c *statusCache) Unlock(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.locks, key)
	c.mu.Unlock()
	return nil
}

var _ pkgcache.Service = (*statusCache)(nil)

func (c *statusCache) statuses(t *testing.T, jobID string) []models.BacktestStatus {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	snaps := c.history[BacktestStatusKey(jobID)]
	out := make([]models.BacktestStatus, 0, len(snaps))
	for _, raw := range snaps {
		var st models.BacktestStatus
		require.NoError(t, json.Unmarshal(raw, &st))
		out = append(out, st)
	}
	return out
}

func newBacktestJob(store *memStore, cache *statusCache, t *testing.T) *BacktestJob {
	engine := features.NewEngine(models.SchemaLegacy, 20)
	return NewBacktestJob(store, cache, engine, testLogger(t))
}

func TestBacktestJobWalkForward(t *testing.T) {
	store := &memStore{}
	require.NoError(t, store.StoreBatch(context.Background(), backtest.GenerateSynthetic(300, 5)))
	cache := newStatusCache()
	job := newBacktestJob(store, cache, t)

	assert.Equal(t, BacktestJobType, job.Type())

	payload := map[string]interface{}{
		"job_id": "wf-1",
		"pair":   "EURUSD",
		"bars":   300,
		"kind":   "walk_forward",
	}
	require.NoError(t, job.Handle(context.Background(), payload))

	sts := cache.statuses(t, "wf-1")
	require.Len(t, sts, 2)
	assert.Equal(t, "running", sts[0].Status)
	assert.Equal(t, "done", sts[1].Status)
	assert.NotNil(t, sts[1].Result)
	assert.NotNil(t, sts[1].Finished)
	assert.Empty(t, sts[1].Error)
}

func TestBacktestJobSyntheticFallback(t *testing.T) {
	// an empty store falls back to a generated series of the requested length
	cache := newStatusCache()
	job := newBacktestJob(&memStore{}, cache, t)

	payload := &models.BacktestJobPayload{JobID: "wf-2", Pair: "EURUSD", Bars: 300}
	require.NoError(t, job.Handle(context.Background(), payload))

	sts := cache.statuses(t, "wf-2")
	require.NotEmpty(t, sts)
	assert.Equal(t, "done", sts[len(sts)-1].Status)
}

func TestBacktestJobShuffle(t *testing.T) {
	cache := newStatusCache()
	job := newBacktestJob(&memStore{}, cache, t)

	payload := &models.BacktestJobPayload{JobID: "sh-1", Pair: "EURUSD", Bars: 300, Kind: "shuffle"}
	require.NoError(t, job.Handle(context.Background(), payload))

	sts := cache.statuses(t, "sh-1")
	last := sts[len(sts)-1]
	assert.Equal(t, "done", last.Status)
	assert.Equal(t, "shuffle", last.Kind)
	assert.NotNil(t, last.Result)
}

func TestBacktestJobSpreadShock(t *testing.T) {
	cache := newStatusCache()
	job := newBacktestJob(&memStore{}, cache, t)

	payload := &models.BacktestJobPayload{JobID: "ss-1", Pair: "EURUSD", Bars: 300, Kind: "spread_shock", ShockPc: 50}
	require.NoError(t, job.Handle(context.Background(), payload))

	sts := cache.statuses(t, "ss-1")
	assert.Equal(t, "done", sts[len(sts)-1].Status)
}

func TestBacktestJobFailsOnShortSeries(t *testing.T) {
	// 50 bars cannot satisfy the default walk-forward window
	cache := newStatusCache()
	job := newBacktestJob(&memStore{}, cache, t)

	payload := &models.BacktestJobPayload{JobID: "wf-3", Pair: "EURUSD", Bars: 50}
	require.Error(t, job.Handle(context.Background(), payload))

	sts := cache.statuses(t, "wf-3")
	last := sts[len(sts)-1]
	assert.Equal(t, "failed", last.Status)
	assert.NotEmpty(t, last.Error)
	assert.NotNil(t, last.Finished)
}

func TestBacktestJobRejectsBadPayload(t *testing.T) {
	job := newBacktestJob(&memStore{}, newStatusCache(), t)
	assert.Error(t, job.Handle(context.Background(), 42))
}

func TestBacktestJobSkipsWhenLockHeld(t *testing.T) {
	cache := newStatusCache()
	job := newBacktestJob(&memStore{}, cache, t)

	held, err := cache.TryLock(context.Background(), "backtest:lock:wf-dup", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	payload := &models.BacktestJobPayload{JobID: "wf-dup", Pair: "EURUSD", Bars: 300}
	require.NoError(t, job.Handle(context.Background(), payload))
	assert.Empty(t, cache.statuses(t, "wf-dup"))
}

func TestBacktestJobReleasesLock(t *testing.T) {
	cache := newStatusCache()
	job := newBacktestJob(&memStore{}, cache, t)

	payload := &models.BacktestJobPayload{JobID: "wf-lk", Pair: "EURUSD", Bars: 300}
	require.NoError(t, job.Handle(context.Background(), payload))

	held, err := cache.TryLock(context.Background(), "backtest:lock:wf-lk", time.Minute)
	require.NoError(t, err)
	assert.True(t, held)
}
