package middleware

import (
	"context"
	"sync"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	applogger "MeanRev/pkg/logger"
)

// Broadcaster pushes a topic message to connected frontends. The
// WebSocket hub implements it; nil disables broadcasting.
type Broadcaster interface {
	Broadcast(msg models.TopicMessage)
}

// barJob and decisionJob are the two downstream work units.
type barJob struct {
	bar models.Bar
}

type decisionJob struct {
	decision *models.Decision
	msgs     []models.TopicMessage
}

// Dispatcher decouples the tick clock from downstream I/O: bar
// persistence, decision caching, Kafka publication and WebSocket
// broadcast all run on worker goroutines fed by bounded buffers. A full
// buffer drops the oldest-pressure item and records the drop; it never
// blocks the caller.
type Dispatcher struct {
	store     domrepo.BarStore
	cache     domrepo.PriceCache
	publisher domrepo.Publisher
	hub       Broadcaster
	metrics   domrepo.Metrics
	l         *applogger.Logger

	barCh      chan barJob
	decisionCh chan decisionJob
	stopCh     chan struct{}
	started    bool
	mu         sync.Mutex
	wg         sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

// WithBufferSize sets both internal buffer capacities.
func WithBufferSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.barCh = make(chan barJob, n)
			d.decisionCh = make(chan decisionJob, n)
		}
	}
}

// WithBroadcaster attaches a frontend broadcaster.
func WithBroadcaster(hub Broadcaster) DispatcherOption {
	return func(d *Dispatcher) { d.hub = hub }
}

// SetBroadcaster attaches the broadcaster after construction. The hub
// depends on the pipeline, which depends on this dispatcher, so the hub
// is wired in last.
func (d *Dispatcher) SetBroadcaster(hub Broadcaster) { d.hub = hub }

// NewDispatcher creates the outbound dispatcher.
func NewDispatcher(
	store domrepo.BarStore,
	cache domrepo.PriceCache,
	publisher domrepo.Publisher,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		cache:      cache,
		publisher:  publisher,
		metrics:    metrics,
		l:          l,
		barCh:      make(chan barJob, 1000),
		decisionCh: make(chan decisionJob, 1000),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the persistence and publication workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(2)
	go d.runBars(ctx)
	go d.runDecisions(ctx)
}

// Stop drains nothing; in-flight buffered work is abandoned. Callers
// stop the pipeline clock first, so at most one tick is lost.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()
	close(d.stopCh)
	d.wg.Wait()
}

// DispatchBar enqueues a bar for persistence. Never blocks.
func (d *Dispatcher) DispatchBar(bar models.Bar) {
	select {
	case d.barCh <- barJob{bar: bar}:
	default:
		d.metrics.RecordError("dispatch_bar_drop")
		d.l.Warn("bar buffer full, dropping", applogger.String("pair", bar.Pair))
	}
}

// DispatchDecision enqueues a decision for caching, publication and
// broadcast. Never blocks.
func (d *Dispatcher) DispatchDecision(decision *models.Decision, msgs []models.TopicMessage) {
	select {
	case d.decisionCh <- decisionJob{decision: decision, msgs: msgs}:
	default:
		d.metrics.RecordError("dispatch_decision_drop")
		d.l.Warn("decision buffer full, dropping", applogger.String("pair", decision.Pair))
	}
}

func (d *Dispatcher) runBars(ctx context.Context) {
	defer d.wg.Done()
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-d.stopCh:
			return
		case j := <-d.barCh:
			start := time.Now()
			if err := d.store.Store(ctx, j.bar); err != nil {
				d.metrics.RecordError("bar_store")
				d.l.Error("store bar failed", applogger.Error(err))
				if backoff < 2*time.Second {
					backoff *= 2
				}
				time.Sleep(backoff)
			} else {
				backoff = 50 * time.Millisecond
				d.metrics.RecordStageLatency("bar_store", time.Since(start).Seconds())
			}
			if err := d.cache.SetPrice(ctx, j.bar.Pair, j.bar.Close); err != nil {
				d.metrics.RecordError("price_cache")
			}
		}
	}
}

func (d *Dispatcher) runDecisions(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case j := <-d.decisionCh:
			if err := d.cache.SetDecision(ctx, j.decision); err != nil {
				d.metrics.RecordError("decision_cache")
			}
			for _, msg := range j.msgs {
				if d.hub != nil {
					d.hub.Broadcast(msg)
				}
				if d.publisher != nil {
					if err := d.publisher.Publish(ctx, j.decision.Pair, msg); err != nil {
						d.metrics.RecordError("decision_publish")
						d.l.Error("publish decision topic failed",
							applogger.String("topic", msg.Type),
							applogger.Error(err),
						)
					}
				}
			}
		}
	}
}
