package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"MeanRev/internal/domain/models"
	domsvc "MeanRev/internal/domain/service"
	"MeanRev/internal/middleware"
	"MeanRev/internal/services/drift"
	"MeanRev/internal/services/edge"
	"MeanRev/internal/services/features"
	"MeanRev/internal/services/regime"
	"MeanRev/internal/services/risk"
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

// scriptedSource replays a fixed bar sequence.
type scriptedSource struct {
	mu   sync.Mutex
	bars []models.Bar
	i    int
}

func (s *scriptedSource) Next(ctx context.Context, pair string) (models.Bar, error) {
	if err := ctx.Err(); err != nil {
		return models.Bar{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bars[s.i%len(s.bars)]
	s.i++
	b.Pair = pair
	return b, nil
}

func (s *scriptedSource) Reset(pair string, seedPrice float64) {
	s.mu.Lock()
	s.i = 0
	s.mu.Unlock()
}

// noVerdictClassifier never has an artifact.
type noVerdictClassifier struct{}

func (noVerdictClassifier) Predict(models.FeatureVector) (*models.RegimeResult, error) {
	return nil, regime.ErrNoArtifact
}
func (noVerdictClassifier) Schema() models.FeatureSchema { return models.SchemaLegacy }
func (noVerdictClassifier) Ready() bool                  { return false }

// stableClassifier always declares a tradeable stable regime.
type stableClassifier struct{}

func (stableClassifier) Predict(models.FeatureVector) (*models.RegimeResult, error) {
	return &models.RegimeResult{
		ProbStable: 0.95, ProbDirectional: 0.03, ProbEvent: 0.02,
		Entropy: 0.25, Tradeable: true, Timestamp: time.Now().UTC(),
	}, nil
}
func (stableClassifier) Schema() models.FeatureSchema { return models.SchemaLegacy }
func (stableClassifier) Ready() bool                  { return true }

type fixedCalendar struct{ blocked bool }

func (f fixedCalendar) IsBlocked(string, time.Time) bool { return f.blocked }
func (f fixedCalendar) Events() []models.NewsEvent       { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)                 {}
func (nopMetrics) RecordSignal(string, string)       {}
func (nopMetrics) RecordError(string)                {}
func (nopMetrics) RecordLastPrice(string, float64)   {}
func (nopMetrics) RecordStageLatency(string, float64) {}
func (nopMetrics) RecordDrawdown(string, float64)    {}

// memStore keeps dispatched bars in memory.
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
func (m *memStore) StoreBatch(ctx context.Context, bars []models.Bar) error {
	m.mu.Lock()
	m.bars = append(m.bars, bars...)
	m.mu.Unlock()
	return nil
}
func (m *memStore) LatestN(context.Context, string, int) ([]models.Bar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Bar, len(m.bars))
	copy(out, m.bars)
	return out, nil
}
func (m *memStore) Range(context.Context, string, time.Time, time.Time) ([]models.Bar, error) {
	return nil, nil
}
func (m *memStore) Health(context.Context) error { return nil }
func (m *memStore) Close() error                 { return nil }

type memPriceCache struct {
	mu       sync.Mutex
	price    map[string]float64
	decision map[string]*models.Decision
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{price: map[string]float64{}, decision: map[string]*models.Decision{}}
}
func (m *memPriceCache) SetPrice(ctx context.Context, pair string, price float64) error {
	m.mu.Lock()
	m.price[pair] = price
	m.mu.Unlock()
	return nil
}
func (m *memPriceCache) GetPrice(ctx context.Context, pair string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price[pair], nil
}
func (m *memPriceCache) SetDecision(ctx context.Context, d *models.Decision) error {
	m.mu.Lock()
	m.decision[d.Pair] = d
	m.mu.Unlock()
	return nil
}
func (m *memPriceCache) GetDecision(ctx context.Context, pair string) (*models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decision[pair], nil
}
func (m *memPriceCache) InvalidateDecision(ctx context.Context, pair string) error {
	m.mu.Lock()
	delete(m.decision, pair)
	m.mu.Unlock()
	return nil
}

func steadyBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	start := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)
	price := 1.1000
	for i := 0; i < n; i++ {
		price += 0.0002
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      price - 0.0001,
			High:      price + 0.0004,
			Low:       price - 0.0004,
			Close:     price,
			Volume:    1000,
			Spread:    0.0001,
		}
	}
	return bars
}

func buildPipeline(t *testing.T, classifier domsvc.RegimeClassifier, calendar fixedCalendar, estimator domsvc.SignalEstimator) (*Pipeline, *middleware.Dispatcher) {
	t.Helper()
	l := testLogger(t)

	engine := features.NewEngine(models.SchemaLegacy, 20)
	sizer := risk.NewSizer(risk.Config{InitialEquity: 10000, VolTarget: 0.15}, l)
	monitor := drift.NewMonitor(drift.Config{})
	session := NewSession("EURUSD", 200, engine, sizer, monitor)

	src := &scriptedSource{bars: steadyBars(120)}
	gate := edge.NewGate(edge.GateConfig{}, estimator)
	dispatcher := middleware.NewDispatcher(&memStore{}, newMemPriceCache(), nil, nopMetrics{}, l)

	p := NewPipeline(session, src, classifier, calendar, gate, dispatcher, nopMetrics{}, nil, l)
	return p, dispatcher
}

type fixedEstimator struct{ est models.EdgeEstimate }

func (f fixedEstimator) Estimate(models.FeatureVector) (models.EdgeEstimate, error) {
	return f.est, nil
}

func TestTickWithoutArtifactStaysAlive(t *testing.T) {
	p, _ := buildPipeline(t, noVerdictClassifier{}, fixedCalendar{}, edge.FailEstimator{})

	d, err := p.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "EURUSD", d.Pair)
	assert.Nil(t, d.Regime)
	assert.Nil(t, d.Signal)
	assert.Equal(t, 0.0, d.Risk.PositionSize)
}

func TestTickEmitsSignalOncePipelineWarm(t *testing.T) {
	p, _ := buildPipeline(t, stableClassifier{}, fixedCalendar{}, fixedEstimator{models.EdgeEstimate{
		ExpectedReturn: 0.001,
		WinProb:        0.65,
		CVaR:           -0.02,
	}})

	var last *models.Decision
	for i := 0; i < 40; i++ {
		d, err := p.Tick(context.Background())
		require.NoError(t, err)
		last = d
	}
	require.NotNil(t, last.Regime)
	assert.True(t, last.Regime.Tradeable)
	require.NotNil(t, last.Signal)
	assert.Equal(t, models.ActionBuy, last.Signal.Action)
	assert.Greater(t, last.Risk.PositionSize, 0.0)
	assert.Greater(t, last.Risk.Equity, 0.0)
}

func TestNewsOverrideForcesFlat(t *testing.T) {
	p, _ := buildPipeline(t, stableClassifier{}, fixedCalendar{blocked: true}, fixedEstimator{models.EdgeEstimate{
		ExpectedReturn: 0.001,
		WinProb:        0.65,
		CVaR:           -0.02,
	}})

	var last *models.Decision
	for i := 0; i < 40; i++ {
		d, err := p.Tick(context.Background())
		require.NoError(t, err)
		last = d
	}
	require.NotNil(t, last.Regime)
	assert.True(t, last.NewsActive)
	assert.True(t, last.Regime.OverrideActive)
	assert.False(t, last.Regime.Tradeable)
	assert.Nil(t, last.Signal)
	assert.Equal(t, 0.0, last.Risk.PositionSize)
}

func TestEstimatorErrorDoesNotKillTick(t *testing.T) {
	p, _ := buildPipeline(t, stableClassifier{}, fixedCalendar{}, edge.FailEstimator{})

	d, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d.Signal)
}

func TestSwitchPairAppliesBetweenTicks(t *testing.T) {
	p, _ := buildPipeline(t, noVerdictClassifier{}, fixedCalendar{}, edge.FailEstimator{})

	_, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Session().Window.Len())

	p.SwitchPair("USDJPY")
	d, err := p.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USDJPY", d.Pair)
	// the window restarted on the new instrument
	assert.Equal(t, 1, p.Session().Window.Len())
}

func TestSeedPrice(t *testing.T) {
	assert.Equal(t, 1.10, SeedPrice("EURUSD"))
	assert.Equal(t, 150.0, SeedPrice("USDJPY"))
	assert.Equal(t, 1.25, SeedPrice("GBPJPY"))
	assert.Equal(t, 100.0, SeedPrice("AUDCAD"))
}

func TestSessionSwitchClearsState(t *testing.T) {
	engine := features.NewEngine(models.SchemaLegacy, 20)
	sizer := risk.NewSizer(risk.Config{}, nil)
	monitor := drift.NewMonitor(drift.Config{})
	s := NewSession("EURUSD", 100, engine, sizer, monitor)

	for _, b := range steadyBars(10) {
		s.Push(b)
	}
	s.RecordSignal(&models.Signal{Action: models.ActionBuy})
	require.Equal(t, 10, s.Window.Len())

	s.Switch("USDJPY")
	assert.Equal(t, "USDJPY", s.Pair)
	assert.Equal(t, 0, s.Window.Len())
	assert.Nil(t, s.LastSignal())
}
