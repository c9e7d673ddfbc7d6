package drift

import (
	"fmt"
	"math"
)

// Minimum samples before the information coefficient is meaningful.
const minICSamples = 30

// Alert thresholds; overridable via Config.
const (
	defaultWindow         = 1000
	defaultAlertSamples   = 100
	defaultICReduce       = 0.02
	defaultICDecommission = 0.0
	defaultEntropySuspend = 1.5
)

// Config tunes the monitor's window and alert thresholds. Zero values
// take defaults.
type Config struct {
	Window         int
	AlertSamples   int
	ICReduce       float64
	ICDecommission float64
	EntropySuspend float64
}

// Monitor tracks rolling (predicted, realized, entropy) triples and
// derives signal-quality diagnostics. It owns its buffers exclusively;
// no other component reads or writes them.
type Monitor struct {
	cfg         Config
	predictions *ring
	actuals     *ring
	entropies   *ring
}

// NewMonitor creates a monitor with bounded FIFO buffers; the oldest
// entries drop on overflow (sliding window, not expanding).
func NewMonitor(cfg Config) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.AlertSamples <= 0 {
		cfg.AlertSamples = defaultAlertSamples
	}
	if cfg.ICReduce == 0 {
		cfg.ICReduce = defaultICReduce
	}
	if cfg.EntropySuspend == 0 {
		cfg.EntropySuspend = defaultEntropySuspend
	}
	return &Monitor{
		cfg:         cfg,
		predictions: newRing(cfg.Window),
		actuals:     newRing(cfg.Window),
		entropies:   newRing(cfg.Window),
	}
}

// Update records one tick's outcome triple.
func (m *Monitor) Update(predictedReturn, actualReturn, entropy float64) {
	m.predictions.push(predictedReturn)
	m.actuals.push(actualReturn)
	m.entropies.push(entropy)
}

// Samples returns the number of retained triples.
func (m *Monitor) Samples() int { return m.predictions.size }

// InformationCoefficient is the Pearson correlation between predicted
// and realized returns. Returns exactly 0.0 below 30 samples
// rather than an error.
func (m *Monitor) InformationCoefficient() float64 {
	n := m.predictions.size
	if n < minICSamples {
		return 0.0
	}
	p := m.predictions.values()
	a := m.actuals.values()

	var sumP, sumA float64
	for i := 0; i < n; i++ {
		sumP += p[i]
		sumA += a[i]
	}
	meanP, meanA := sumP/float64(n), sumA/float64(n)

	var cov, varP, varA float64
	for i := 0; i < n; i++ {
		dp, da := p[i]-meanP, a[i]-meanA
		cov += dp * da
		varP += dp * dp
		varA += da * da
	}
	if varP == 0 || varA == 0 {
		return 0.0
	}
	return cov / math.Sqrt(varP*varA)
}

// AverageEntropy is the arithmetic mean of the entropy buffer, 0.0 when
// empty.
func (m *Monitor) AverageEntropy() float64 {
	if m.entropies.size == 0 {
		return 0.0
	}
	return m.entropies.sum / float64(m.entropies.size)
}

// Alerts recomputes the qualitative drift alerts fresh on every call.
// Alerts are independent and can co-occur.
func (m *Monitor) Alerts() []string {
	var alerts []string
	ic := m.InformationCoefficient()
	entropyAvg := m.AverageEntropy()
	n := m.Samples()

	if n > m.cfg.AlertSamples && ic < m.cfg.ICReduce {
		alerts = append(alerts, fmt.Sprintf("Low IC (%.4f): Reduce Allocation", ic))
	}
	if n > m.cfg.AlertSamples && ic < m.cfg.ICDecommission {
		alerts = append(alerts, fmt.Sprintf("Negative IC (%.4f): Decommission Model", ic))
	}
	if entropyAvg > m.cfg.EntropySuspend {
		alerts = append(alerts, fmt.Sprintf("High Entropy (%.4f): Suspend Trading", entropyAvg))
	}
	return alerts
}

// ring is a fixed-capacity float FIFO with a running sum.
type ring struct {
	buf   []float64
	start int
	size  int
	sum   float64
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	if r.size == len(r.buf) {
		r.sum -= r.buf[r.start]
		r.buf[r.start] = v
		r.start = (r.start + 1) % len(r.buf)
	} else {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
	}
	r.sum += v
}

func (r *ring) values() []float64 {
	out := make([]float64, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
