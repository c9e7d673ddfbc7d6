package usecase

import (
	"strings"

	"MeanRev/internal/domain/models"
	"MeanRev/internal/services/drift"
	"MeanRev/internal/services/features"
	"MeanRev/internal/services/risk"
)

// SeedPrice picks a plausible starting price for a pair when the window
// resets. Later currency checks override earlier ones.
func SeedPrice(pair string) float64 {
	price := 100.0
	if strings.Contains(pair, "JPY") {
		price = 150.0
	}
	if strings.Contains(pair, "BTC") {
		price = 65000.0
	}
	if strings.Contains(pair, "EUR") {
		price = 1.10
	}
	if strings.Contains(pair, "GBP") {
		price = 1.25
	}
	return price
}

// Session owns all per-instrument mutable state: the rolling bar
// window, the feature engine, the risk sizer and the drift monitor.
// Each instrument gets an independent session; nothing here is shared
// across instruments, and a session is driven from a single logical
// thread of control.
type Session struct {
	Pair    string
	Window  *features.BarWindow
	Engine  *features.Engine
	Sizer   *risk.Sizer
	Monitor *drift.Monitor

	// last emitted signal, paired with the next realized return for the
	// drift monitor.
	lastSignal *models.Signal
}

// NewSession creates a session for pair with the given components.
func NewSession(pair string, retention int, engine *features.Engine, sizer *risk.Sizer, monitor *drift.Monitor) *Session {
	if retention < engine.Lookback()+1 {
		retention = engine.Lookback() * 5
	}
	return &Session{
		Pair:    pair,
		Window:  features.NewBarWindow(retention),
		Engine:  engine,
		Sizer:   sizer,
		Monitor: monitor,
	}
}

// Push appends a bar to the rolling window.
func (s *Session) Push(b models.Bar) { s.Window.Push(b) }

// Switch resets the session onto a new instrument: the bar window is
// dropped and will re-seed from the new pair's seed price. Risk and
// drift state carry across, they are account-level, not price-level.
func (s *Session) Switch(pair string) {
	s.Pair = pair
	s.Window.Reset()
	s.lastSignal = nil
}

// RecordSignal remembers the signal emitted this tick (nil when gated).
func (s *Session) RecordSignal(sig *models.Signal) { s.lastSignal = sig }

// LastSignal returns the previous tick's emitted signal, if any.
func (s *Session) LastSignal() *models.Signal { return s.lastSignal }
