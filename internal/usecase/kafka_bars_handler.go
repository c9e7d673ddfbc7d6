package usecase

import (
	"context"
	"encoding/json"
	"time"

	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	pkgkafka "MeanRev/pkg/kafka"
)

// KafkaBarsHandler consumes externally produced OHLCV bars and writes
// them to the bar store and the price cache. Used when bars arrive from
// an upstream feed instead of the built-in simulator.
type KafkaBarsHandler struct {
	topic   string
	store   domrepo.BarStore
	cache   domrepo.PriceCache
	metrics domrepo.Metrics
}

func NewKafkaBarsHandler(topic string, store domrepo.BarStore, cache domrepo.PriceCache, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, cache: cache, metrics: metrics}
}

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {pair, t, o, h, l, c, v, s}
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Pair string  `json:"pair"`
		T    int64   `json:"t"`
		O    float64 `json:"o"`
		H    float64 `json:"h"`
		L    float64 `json:"l"`
		C    float64 `json:"c"`
		V    float64 `json:"v"`
		S    float64 `json:"s"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}
	h.metrics.RecordStageLatency("ingest_e2e", time.Since(time.Unix(m.T, 0)).Seconds())

	bar := models.Bar{
		Pair:      m.Pair,
		Timestamp: time.Unix(m.T, 0).UTC(),
		Open:      m.O,
		High:      m.H,
		Low:       m.L,
		Close:     m.C,
		Volume:    m.V,
		Spread:    m.S,
	}

	start := time.Now()
	err := h.store.Store(ctx, bar)
	h.metrics.RecordStageLatency("bar_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	if err := h.cache.SetPrice(ctx, bar.Pair, bar.Close); err != nil {
		h.metrics.RecordError("consumer_cache")
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)
