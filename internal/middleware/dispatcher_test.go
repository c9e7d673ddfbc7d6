package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"MeanRev/internal/domain/models"
	applogger "MeanRev/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

type memStore struct {
	mu   sync.Mutex
	bars []models.Bar
}

func (m *memStore) Init(context.Context) error { return nil }
func (m *memStore) Store(ctx context.Context, bar models.Bar) error {
	m.mu.Lock()
	m.bars = append(m.bars, bar)
	m.mu.Unlock()
	return nil
}
func (m *memStore) StoreBatch(ctx context.Context, bars []models.Bar) error { return nil }
func (m *memStore) LatestN(context.Context, string, int) ([]models.Bar, error) {
	return nil, nil
}
func (m *memStore) Range(context.Context, string, time.Time, time.Time) ([]models.Bar, error) {
	return nil, nil
}
func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bars)
}

type memCache struct {
	mu       sync.Mutex
	price    map[string]float64
	decision map[string]*models.Decision
}

func newMemCache() *memCache {
	return &memCache{price: map[string]float64{}, decision: map[string]*models.Decision{}}
}
func (m *memCache) SetPrice(ctx context.Context, pair string, price float64) error {
	m.mu.Lock()
	m.price[pair] = price
	m.mu.Unlock()
	return nil
}
func (m *memCache) GetPrice(ctx context.Context, pair string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price[pair], nil
}
func (m *memCache) SetDecision(ctx context.Context, d *models.Decision) error {
	m.mu.Lock()
	m.decision[d.Pair] = d
	m.mu.Unlock()
	return nil
}
func (m *memCache) GetDecision(ctx context.Context, pair string) (*models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decision[pair], nil
}
func (m *memCache) InvalidateDecision(ctx context.Context, pair string) error {
	m.mu.Lock()
	delete(m.decision, pair)
	m.mu.Unlock()
	return nil
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []models.TopicMessage
}

func (r *recordingBroadcaster) Broadcast(msg models.TopicMessage) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type recordingMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newRecordingMetrics() *recordingMetrics     { return &recordingMetrics{errors: map[string]int{}} }
func (m *recordingMetrics) RecordTick(string)    {}
func (m *recordingMetrics) RecordSignal(string, string) {}
func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *recordingMetrics) RecordLastPrice(string, float64)    {}
func (m *recordingMetrics) RecordStageLatency(string, float64) {}
func (m *recordingMetrics) RecordDrawdown(string, float64)     {}

func (m *recordingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestDispatchBarPersists(t *testing.T) {
	store := &memStore{}
	cache := newMemCache()
	d := NewDispatcher(store, cache, nil, newRecordingMetrics(), testLogger(t))
	d.Start(context.Background())
	defer d.Stop()

	d.DispatchBar(models.Bar{Pair: "EURUSD", Close: 1.1})
	waitFor(t, func() bool { return store.count() == 1 })

	price, err := cache.GetPrice(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.1, price)
}

func TestDispatchDecisionBroadcastsAndCaches(t *testing.T) {
	cache := newMemCache()
	hub := &recordingBroadcaster{}
	d := NewDispatcher(&memStore{}, cache, nil, newRecordingMetrics(), testLogger(t), WithBroadcaster(hub))
	d.Start(context.Background())
	defer d.Stop()

	dec := &models.Decision{Pair: "EURUSD", Price: 1.1}
	msgs := []models.TopicMessage{
		{Type: models.TopicPrice},
		{Type: models.TopicRisk},
	}
	d.DispatchDecision(dec, msgs)
	waitFor(t, func() bool { return hub.count() == 2 })

	got, err := cache.GetDecision(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, dec, got)
}

func TestDispatchNeverBlocksWhenFull(t *testing.T) {
	metrics := newRecordingMetrics()
	d := NewDispatcher(&memStore{}, newMemCache(), nil, metrics, testLogger(t), WithBufferSize(1))
	// not started: workers never drain the buffers

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.DispatchBar(models.Bar{Pair: "EURUSD"})
			d.DispatchDecision(&models.Decision{Pair: "EURUSD"}, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a full buffer")
	}
	assert.Greater(t, metrics.errorCount("dispatch_bar_drop"), 0)
	assert.Greater(t, metrics.errorCount("dispatch_decision_drop"), 0)
}

func TestSetBroadcasterAfterConstruction(t *testing.T) {
	hub := &recordingBroadcaster{}
	d := NewDispatcher(&memStore{}, newMemCache(), nil, newRecordingMetrics(), testLogger(t))
	d.SetBroadcaster(hub)
	d.Start(context.Background())
	defer d.Stop()

	d.DispatchDecision(&models.Decision{Pair: "EURUSD"}, []models.TopicMessage{{Type: models.TopicEdge}})
	waitFor(t, func() bool { return hub.count() == 1 })
}

func TestStartStopIdempotent(t *testing.T) {
	d := NewDispatcher(&memStore{}, newMemCache(), nil, newRecordingMetrics(), testLogger(t))
	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}
