package features

import (
	"errors"
	"fmt"
	"math"

	"MeanRev/internal/domain/models"
)

// ErrSchema reports a bar whose required inputs are absent or not finite
// for the engine's schema. Fatal to the single call, never patched.
var ErrSchema = errors.New("feature schema violation")

// parkinsonConst scales the log high-low range, 1/sqrt(4 ln 2).
var parkinsonConst = 1.0 / math.Sqrt(4*math.Ln2)

// rangeFloor keeps the liquidity denominator away from zero.
const rangeFloor = 1e-9

// Engine derives statistical feature vectors from a bar window. One
// engine instance serves one instrument; the caller owns the rolling
// window and passes it in whole. Rows with insufficient history carry an
// explicit undefined marker, never a stale value.
type Engine struct {
	schema   models.FeatureSchema
	lookback int
}

// NewEngine builds an engine for the given schema. lookback bounds every
// rolling statistic (default 20 when non-positive).
func NewEngine(schema models.FeatureSchema, lookback int) *Engine {
	if lookback <= 0 {
		lookback = 20
	}
	return &Engine{schema: schema, lookback: lookback}
}

// Schema returns the feature-set schema this engine produces.
func (e *Engine) Schema() models.FeatureSchema { return e.schema }

// Lookback returns the rolling window length.
func (e *Engine) Lookback() int { return e.lookback }

// Process computes one feature vector per bar, causally: row t uses only
// bars at or before t.
func (e *Engine) Process(bars []models.Bar) ([]models.FeatureVector, error) {
	if err := e.validate(bars); err != nil {
		return nil, err
	}
	switch e.schema {
	case models.SchemaNPLR:
		return e.processNPLR(bars), nil
	default:
		return e.processLegacy(bars), nil
	}
}

// Latest computes the feature vector for the most recent bar.
func (e *Engine) Latest(bars []models.Bar) (models.FeatureVector, error) {
	rows, err := e.Process(bars)
	if err != nil {
		return models.FeatureVector{}, err
	}
	if len(rows) == 0 {
		return models.FeatureVector{}, fmt.Errorf("empty bar window")
	}
	return rows[len(rows)-1], nil
}

func (e *Engine) validate(bars []models.Bar) error {
	for i, b := range bars {
		for name, v := range map[string]float64{
			"open": b.Open, "high": b.High, "low": b.Low, "close": b.Close,
		} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("%w: bar %d field %s", ErrSchema, i, name)
			}
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d high < low", ErrSchema, i)
		}
		switch e.schema {
		case models.SchemaNPLR:
			if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) {
				return fmt.Errorf("%w: bar %d field volume", ErrSchema, i)
			}
		default:
			if math.IsNaN(b.Spread) || math.IsInf(b.Spread, 0) {
				return fmt.Errorf("%w: bar %d field spread", ErrSchema, i)
			}
		}
	}
	return nil
}

func (e *Engine) processLegacy(bars []models.Bar) []models.FeatureVector {
	n := len(bars)
	w := e.lookback

	logRet := LogReturns(bars)
	gk := garmanKlassSeries(bars, w)
	spreadF := spreadFactorSeries(bars, w)
	disp := displacementPctSeries(bars, w)
	sessVol := rollingStd(logRet, w)

	out := make([]models.FeatureVector, n)
	for t := 0; t < n; t++ {
		out[t] = models.FeatureVector{
			Schema: models.SchemaLegacy,
			Values: map[string]float64{
				models.FeatLogReturn:       logRet[t],
				models.FeatGKVol:           gk[t],
				models.FeatSpreadFactor:    spreadF[t],
				models.FeatDisplacementPct: disp[t],
				models.FeatSessionVol:      sessVol[t],
			},
		}
	}
	return out
}

func (e *Engine) processNPLR(bars []models.Bar) []models.FeatureVector {
	n := len(bars)
	w := e.lookback

	rank := displacementRankSeries(bars, w)
	rawVol := make([]float64, n)
	rawLiq := make([]float64, n)
	for t, b := range bars {
		rawVol[t] = ParkinsonVol(b)
		rawLiq[t] = LiquidityProxy(b)
	}

	volNorm := newTODNormalizer()
	liqNorm := newTODNormalizer()
	out := make([]models.FeatureVector, n)
	for t := 0; t < n; t++ {
		relVol := volNorm.Normalize(bars[t].Timestamp, rawVol[t])
		relLiq := liqNorm.Normalize(bars[t].Timestamp, rawLiq[t])
		frag := models.Undefined()
		if models.IsDefined(relVol) && models.IsDefined(relLiq) && relLiq != 0 {
			frag = relVol / relLiq
		}
		out[t] = models.FeatureVector{
			Schema: models.SchemaNPLR,
			Values: map[string]float64{
				models.FeatDisplacementRank: rank[t],
				models.FeatRelVol:           relVol,
				models.FeatRelLiq:           relLiq,
				models.FeatFragilityIdx:     frag,
			},
		}
	}
	return out
}

// SessionVol returns the latest trailing standard deviation of log
// returns over the window, or undefined with insufficient history. Used
// for position sizing regardless of schema.
func SessionVol(bars []models.Bar, window int) float64 {
	std := rollingStd(LogReturns(bars), window)
	if len(std) == 0 {
		return models.Undefined()
	}
	return std[len(std)-1]
}

// LogReturns computes r_t = ln(C_t / C_{t-1}) aligned to bars; the first
// element is undefined.
func LogReturns(bars []models.Bar) []float64 {
	out := make([]float64, len(bars))
	for t := range bars {
		if t == 0 {
			out[t] = models.Undefined()
			continue
		}
		out[t] = math.Log(bars[t].Close / bars[t-1].Close)
	}
	return out
}

// ParkinsonVol estimates per-bar volatility from the high-low range.
func ParkinsonVol(b models.Bar) float64 {
	logHL := math.Log(b.High / b.Low)
	return math.Sqrt(logHL*logHL) * parkinsonConst
}

// LiquidityProxy is the inverse-Amihud measure ln(volume / range_pct)
// with the range term floored away from zero. High means deep liquidity
// (absorption), low means thin.
func LiquidityProxy(b models.Bar) float64 {
	if b.Volume <= 0 {
		return models.Undefined()
	}
	rangePct := (b.High - b.Low) / b.Close
	if rangePct < rangeFloor {
		rangePct = rangeFloor
	}
	return math.Log(b.Volume / rangePct)
}

// garmanKlassSeries computes the rolling Garman-Klass estimator
// sqrt(mean(0.5 ln(H/L)^2 - (2 ln 2 - 1) ln(C/O)^2)) over the trailing
// window. Undefined until a full window is available, and when the mean
// term goes negative.
func garmanKlassSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	terms := make([]float64, n)
	for t, b := range bars {
		logHL := math.Log(b.High / b.Low)
		logCO := math.Log(b.Close / b.Open)
		terms[t] = 0.5*logHL*logHL - (2*math.Ln2-1)*logCO*logCO
	}
	out := make([]float64, n)
	ring := newRingStats(window)
	for t := 0; t < n; t++ {
		ring.push(terms[t])
		if ring.size < window {
			out[t] = models.Undefined()
			continue
		}
		m := ring.mean()
		if m < 0 {
			out[t] = models.Undefined()
			continue
		}
		out[t] = math.Sqrt(m)
	}
	return out
}

// spreadFactorSeries is spread over its trailing rolling mean. A zero
// rolling mean yields undefined, never a division by zero.
func spreadFactorSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	ring := newRingStats(window)
	for t := 0; t < n; t++ {
		ring.push(bars[t].Spread)
		if ring.size < window {
			out[t] = models.Undefined()
			continue
		}
		m := ring.mean()
		if m == 0 {
			out[t] = models.Undefined()
			continue
		}
		out[t] = bars[t].Spread / m
	}
	return out
}

// displacementPctSeries ranks |C_t - C_{t-1}| within the trailing window
// of displacements. The first displacement exists at t=1, so the series
// is defined from t = window onward.
func displacementPctSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	disp := make([]float64, n)
	for t := 0; t < n; t++ {
		if t == 0 {
			disp[t] = models.Undefined()
			out[t] = models.Undefined()
			continue
		}
		disp[t] = math.Abs(bars[t].Close - bars[t-1].Close)
		if t < window {
			out[t] = models.Undefined()
			continue
		}
		out[t] = percentileRank(disp[t-window+1:t+1], disp[t])
	}
	return out
}

// displacementRankSeries ranks C_t itself within the trailing lookback.
func displacementRankSeries(bars []models.Bar, window int) []float64 {
	n := len(bars)
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		if t < window-1 {
			out[t] = models.Undefined()
			continue
		}
		lo := t - window + 1
		vals := make([]float64, 0, window)
		for i := lo; i <= t; i++ {
			vals = append(vals, bars[i].Close)
		}
		out[t] = percentileRank(vals, bars[t].Close)
	}
	return out
}

// percentileRank returns the average-rank percentile of x within vals
// (inclusive of x itself), in [0,1].
func percentileRank(vals []float64, x float64) float64 {
	if len(vals) == 0 {
		return models.Undefined()
	}
	less, equal := 0, 0
	for _, v := range vals {
		switch {
		case v < x:
			less++
		case v == x:
			equal++
		}
	}
	avgRank := float64(less) + (float64(equal)+1)/2
	return avgRank / float64(len(vals))
}

// rollingStd computes the trailing sample standard deviation of xs,
// skipping leading undefined entries. Defined once window defined
// samples are available.
func rollingStd(xs []float64, window int) []float64 {
	n := len(xs)
	out := make([]float64, n)
	ring := newRingStats(window)
	for t := 0; t < n; t++ {
		if !models.IsDefined(xs[t]) {
			out[t] = models.Undefined()
			continue
		}
		ring.push(xs[t])
		if ring.size < window {
			out[t] = models.Undefined()
			continue
		}
		k := float64(ring.size)
		variance := (ring.sum2 - ring.sum*ring.sum/k) / (k - 1)
		if variance < 0 {
			variance = 0
		}
		out[t] = math.Sqrt(variance)
	}
	return out
}
