package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	domsvc "MeanRev/internal/domain/service"
	"MeanRev/internal/middleware"
	"MeanRev/internal/services/drift"
	"MeanRev/internal/services/edge"
	"MeanRev/internal/services/features"
	"MeanRev/internal/services/regime"
	applogger "MeanRev/pkg/logger"
)

// Pipeline stages, used to type per-stage failures.
const (
	StageSource   = "source"
	StageFeatures = "features"
	StageRegime   = "regime"
	StageEdge     = "edge"
	StagePublish  = "publish"
)

// StageError carries which stage failed so the orchestration loop can
// decide skip-and-log vs propagate.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Pipeline drives one instrument through the decision chain: bar →
// features → regime → news override → edge → risk → drift → publish.
// Logically single-threaded: one tick completes before the next begins;
// only downstream I/O is dispatched concurrently via the dispatcher.
type Pipeline struct {
	session    *Session
	source     domrepo.BarSource
	classifier domsvc.RegimeClassifier
	news       domsvc.NewsCalendar
	edgeGate   *edge.Gate
	dispatcher *middleware.Dispatcher
	metrics    domrepo.Metrics
	baseline   []float64
	l          *applogger.Logger

	mu          sync.Mutex
	pendingPair string
}

// NewPipeline assembles the decision pipeline for one instrument
// session. baseline is the training-time entropy distribution used for
// the governance KL score; nil disables it.
func NewPipeline(
	session *Session,
	source domrepo.BarSource,
	classifier domsvc.RegimeClassifier,
	news domsvc.NewsCalendar,
	edgeGate *edge.Gate,
	dispatcher *middleware.Dispatcher,
	metrics domrepo.Metrics,
	baseline []float64,
	l *applogger.Logger,
) *Pipeline {
	return &Pipeline{
		session:    session,
		source:     source,
		classifier: classifier,
		news:       news,
		edgeGate:   edgeGate,
		dispatcher: dispatcher,
		metrics:    metrics,
		baseline:   baseline,
		l:          l,
	}
}

// Session exposes the instrument session (read-only use by handlers).
func (p *Pipeline) Session() *Session { return p.session }

// SwitchPair requests an instrument switch. The switch is applied
// between ticks, never mid-tick.
func (p *Pipeline) SwitchPair(pair string) {
	p.mu.Lock()
	p.pendingPair = pair
	p.mu.Unlock()
}

func (p *Pipeline) applyPendingSwitch() {
	p.mu.Lock()
	pair := p.pendingPair
	p.pendingPair = ""
	p.mu.Unlock()
	if pair == "" || pair == p.session.Pair {
		return
	}
	seed := SeedPrice(pair)
	p.session.Switch(pair)
	p.source.Reset(pair, seed)
	p.l.Info("switched pair",
		applogger.String("pair", pair),
		applogger.Any("seed_price", seed),
	)
}

// Tick consumes exactly one bar and produces exactly one decision
// tuple. A returned error is fatal to this tick only; the loop logs it
// and continues after a backoff.
func (p *Pipeline) Tick(ctx context.Context) (*models.Decision, error) {
	p.applyPendingSwitch()

	start := time.Now()
	bar, err := p.source.Next(ctx, p.session.Pair)
	if err != nil {
		p.metrics.RecordError("source")
		return nil, &StageError{Stage: StageSource, Err: err}
	}
	p.session.Push(bar)
	p.dispatcher.DispatchBar(bar)
	p.metrics.RecordLastPrice(bar.Pair, bar.Close)

	bars := p.session.Window.Bars()
	fv, err := p.session.Engine.Latest(bars)
	if err != nil {
		p.metrics.RecordError("features")
		return nil, &StageError{Stage: StageFeatures, Err: err}
	}
	p.metrics.RecordStageLatency("features", time.Since(start).Seconds())

	// Regime verdict. No artifact or failed inference means no verdict;
	// both leave the tick alive and untradeable.
	verdict, err := p.classifier.Predict(fv)
	if err != nil {
		if errors.Is(err, regime.ErrNoArtifact) {
			p.l.Debug("no regime verdict: artifact missing")
		} else {
			p.metrics.RecordError("regime")
			p.l.Error("regime inference failed", applogger.Error(err))
		}
	}

	// News override precedes the edge gate.
	blocked := p.news.IsBlocked(p.session.Pair, bar.Timestamp)
	if blocked && verdict != nil {
		verdict.Tradeable = false
		verdict.OverrideActive = true
	}

	signal, err := p.edgeGate.Evaluate(fv, verdict)
	if err != nil {
		// A missing production estimator fails loudly but must not kill
		// the pipeline clock.
		p.metrics.RecordError("edge")
		p.l.Error("edge evaluation failed", applogger.Error(err))
		signal = nil
	}

	// Mark equity to the realized return of the previous tick's signal.
	logRet := latestLogReturn(bars)
	sizer := p.session.Sizer
	equity := sizer.State().Equity
	if prev := p.session.LastSignal(); prev != nil && models.IsDefined(logRet) {
		dir := 1.0
		if prev.Action == models.ActionSell {
			dir = -1.0
		}
		equity += equity * dir * logRet
	}
	sizer.UpdateEquity(equity)
	p.metrics.RecordDrawdown(p.session.Pair, sizer.State().CurrentDrawdown)

	vol := features.SessionVol(bars, p.session.Engine.Lookback())
	sizingVol := vol
	if !models.IsDefined(sizingVol) {
		sizingVol = 0
	}
	size := sizer.Size(signal, bar.Close, sizingVol)

	// Drift triples only make sense once a verdict exists and a realized
	// return is available.
	if verdict != nil && models.IsDefined(logRet) {
		predicted := 0.0
		if prev := p.session.LastSignal(); prev != nil {
			predicted = prev.ExpectedReturn
		}
		p.session.Monitor.Update(predicted, logRet, verdict.Entropy)
	}
	p.session.RecordSignal(signal)

	governance := p.governance()
	decision := &models.Decision{
		Pair:       p.session.Pair,
		Timestamp:  bar.Timestamp,
		Price:      bar.Close,
		Regime:     verdict,
		NewsActive: blocked,
		Signal:     signal,
		Risk: models.RiskPayload{
			Equity:       sizer.State().Equity,
			Drawdown:     sizer.State().CurrentDrawdown,
			PositionSize: size,
			Volatility:   sizingVol,
		},
		Governance: governance,
	}

	p.publish(decision)
	p.metrics.RecordTick(p.session.Pair)
	if signal != nil {
		p.metrics.RecordSignal(p.session.Pair, signal.Action)
	}
	p.metrics.RecordStageLatency("tick", time.Since(start).Seconds())
	return decision, nil
}

func (p *Pipeline) governance() models.GovernancePayload {
	mon := p.session.Monitor
	payload := models.GovernancePayload{
		IC:         mon.InformationCoefficient(),
		EntropyAvg: mon.AverageEntropy(),
		Alerts:     mon.Alerts(),
	}
	if len(p.baseline) > 0 {
		live := mon.EntropyDistribution(len(p.baseline), math.Log(3))
		if live != nil {
			kl, err := drift.KLDivergence(live, p.baseline)
			if err == nil {
				payload.KLDivergence = kl
			}
		}
	}
	return payload
}

// publish hands one message per topic to the dispatcher. Broadcast and
// persistence run off the tick clock; a slow consumer never stalls it.
func (p *Pipeline) publish(d *models.Decision) {
	msgs := []models.TopicMessage{
		{Type: models.TopicPrice, Payload: models.PricePayload{Pair: d.Pair, Price: d.Price}},
		{Type: models.TopicNews, Payload: models.NewsPayload{Active: d.NewsActive}},
		{Type: models.TopicRisk, Payload: d.Risk},
		{Type: models.TopicGovernance, Payload: d.Governance},
	}
	if d.Regime != nil {
		msgs = append(msgs, models.TopicMessage{Type: models.TopicRegime, Payload: d.Regime})
	}
	// edge is always sent, null payload clears the client's last signal
	msgs = append(msgs, models.TopicMessage{Type: models.TopicEdge, Payload: d.Signal})

	p.dispatcher.DispatchDecision(d, msgs)
}

// Run drives the tick loop until ctx is done. An unexpected tick error
// is logged and the loop continues after a fixed backoff; it never
// terminates the process.
func (p *Pipeline) Run(ctx context.Context, interval, backoff time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if backoff <= 0 {
		backoff = interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Tick(ctx); err != nil {
				p.l.Error("tick failed", applogger.Error(err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
			}
		}
	}
}

func latestLogReturn(bars []models.Bar) float64 {
	if len(bars) < 2 {
		return models.Undefined()
	}
	prev := bars[len(bars)-2].Close
	cur := bars[len(bars)-1].Close
	if prev <= 0 || cur <= 0 {
		return models.Undefined()
	}
	return math.Log(cur / prev)
}
