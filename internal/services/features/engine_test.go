package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"MeanRev/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	price := 1.1000
	for i := 0; i < n; i++ {
		price += 0.0003
		bars[i] = models.Bar{
			Pair:      "EURUSD",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      price - 0.0002,
			High:      price + 0.0005,
			Low:       price - 0.0005,
			Close:     price,
			Volume:    1000,
			Spread:    0.0001,
		}
	}
	return bars
}

func TestLegacyFeaturesDefinedAfterWarmup(t *testing.T) {
	e := NewEngine(models.SchemaLegacy, 20)
	bars := risingBars(60)

	rows, err := e.Process(bars)
	require.NoError(t, err)
	require.Len(t, rows, 60)

	for t0 := 20; t0 < 60; t0++ {
		assert.True(t, rows[t0].Complete(), "row %d should be complete", t0)
	}
	// first row has no return and no rolling stats yet
	assert.False(t, rows[0].Complete())
	_, ok := rows[0].Get(models.FeatLogReturn)
	assert.False(t, ok)
}

func TestProcessIsCausal(t *testing.T) {
	e := NewEngine(models.SchemaLegacy, 20)
	bars := risingBars(60)

	full, err := e.Process(bars)
	require.NoError(t, err)

	// per-row values computed on a prefix must match the full run
	for _, k := range []int{25, 40, 60} {
		prefix, err := e.Process(bars[:k])
		require.NoError(t, err)
		for _, name := range models.SchemaFeatures(models.SchemaLegacy) {
			wantV, wantOK := full[k-1].Get(name)
			gotV, gotOK := prefix[k-1].Get(name)
			require.Equal(t, wantOK, gotOK, "feature %s at %d", name, k-1)
			if wantOK {
				assert.InDelta(t, wantV, gotV, 1e-12, "feature %s at %d", name, k-1)
			}
		}
	}
}

func TestLatestReturnsLastRow(t *testing.T) {
	e := NewEngine(models.SchemaLegacy, 20)
	bars := risingBars(40)

	fv, err := e.Latest(bars)
	require.NoError(t, err)
	assert.True(t, fv.Complete())

	_, err = e.Latest(nil)
	assert.Error(t, err)
}

func TestValidateRejectsBadBars(t *testing.T) {
	e := NewEngine(models.SchemaLegacy, 20)

	bad := risingBars(5)
	bad[2].Close = -1
	_, err := e.Process(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	inverted := risingBars(5)
	inverted[3].High = inverted[3].Low - 0.001
	_, err = e.Process(inverted)
	assert.True(t, errors.Is(err, ErrSchema))

	nanSpread := risingBars(5)
	nanSpread[1].Spread = math.NaN()
	_, err = e.Process(nanSpread)
	assert.True(t, errors.Is(err, ErrSchema))
}

func TestSpreadFactorUndefinedOnZeroMean(t *testing.T) {
	e := NewEngine(models.SchemaLegacy, 5)
	bars := risingBars(12)
	for i := range bars {
		bars[i].Spread = 0
	}
	rows, err := e.Process(bars)
	require.NoError(t, err)
	for i, row := range rows {
		_, ok := row.Get(models.FeatSpreadFactor)
		assert.False(t, ok, "row %d", i)
	}
}

func TestLogReturns(t *testing.T) {
	bars := risingBars(3)
	rets := LogReturns(bars)
	require.Len(t, rets, 3)
	assert.False(t, models.IsDefined(rets[0]))
	assert.InDelta(t, math.Log(bars[1].Close/bars[0].Close), rets[1], 1e-15)
	assert.InDelta(t, math.Log(bars[2].Close/bars[1].Close), rets[2], 1e-15)
}

func TestSessionVol(t *testing.T) {
	bars := risingBars(40)
	v := SessionVol(bars, 20)
	assert.True(t, models.IsDefined(v))
	assert.GreaterOrEqual(t, v, 0.0)

	assert.False(t, models.IsDefined(SessionVol(bars[:5], 20)))
	assert.False(t, models.IsDefined(SessionVol(nil, 20)))
}

func TestPercentileRank(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	// 5 is the largest: rank (4 + 1) / 5
	assert.InDelta(t, 1.0, percentileRank(vals, 5), 1e-12)
	// 1 is the smallest: rank (0 + 1) / 5
	assert.InDelta(t, 0.2, percentileRank(vals, 1), 1e-12)
	assert.False(t, models.IsDefined(percentileRank(nil, 1)))
}

func TestNPLRFeatures(t *testing.T) {
	e := NewEngine(models.SchemaNPLR, 10)
	bars := risingBars(40)

	rows, err := e.Process(bars)
	require.NoError(t, err)
	require.Len(t, rows, 40)

	last := rows[len(rows)-1]
	rank, ok := last.Get(models.FeatDisplacementRank)
	require.True(t, ok)
	assert.GreaterOrEqual(t, rank, 0.0)
	assert.LessOrEqual(t, rank, 1.0)
	// rising closes rank the latest close at the top of the window
	assert.Greater(t, rank, 0.9)
}

func TestParkinsonVolAndLiquidity(t *testing.T) {
	b := models.Bar{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}
	pv := ParkinsonVol(b)
	assert.InDelta(t, math.Log(101.0/99.0)/math.Sqrt(4*math.Ln2), pv, 1e-12)

	lq := LiquidityProxy(b)
	assert.True(t, models.IsDefined(lq))

	b.Volume = 0
	assert.False(t, models.IsDefined(LiquidityProxy(b)))
}
