package news

import (
	"sync"
	"time"

	"MeanRev/internal/domain/models"
	domsvc "MeanRev/internal/domain/service"
	applogger "MeanRev/pkg/logger"
)

// Blocking window around a high-impact event.
const (
	windowBefore = 30 * time.Minute
	windowAfter  = 60 * time.Minute
)

// Gate answers whether a high-impact macro event blocks trading for an
// instrument. Reads are pure; the calendar is replaced wholesale on
// refresh.
type Gate struct {
	mu     sync.RWMutex
	events []models.NewsEvent
	l      *applogger.Logger
}

// NewGate creates a gate over the given calendar.
func NewGate(events []models.NewsEvent, l *applogger.Logger) *Gate {
	return &Gate{events: events, l: l}
}

// Replace swaps in a freshly fetched calendar.
func (g *Gate) Replace(events []models.NewsEvent) {
	g.mu.Lock()
	g.events = events
	g.mu.Unlock()
}

// Events returns a copy of the current calendar.
func (g *Gate) Events() []models.NewsEvent {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.NewsEvent, len(g.events))
	copy(out, g.events)
	return out
}

// IsBlocked reports whether any high-impact event for one of the pair's
// currency legs falls within [now-30m, now+60m]. The 6-character pair
// code splits into first-3/last-3 legs by fixed convention.
func (g *Gate) IsBlocked(pair string, now time.Time) bool {
	if len(pair) != 6 {
		return false
	}
	base, quote := pair[:3], pair[3:]
	start := now.Add(-windowBefore)
	end := now.Add(windowAfter)

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, ev := range g.events {
		if ev.Currency != base && ev.Currency != quote {
			continue
		}
		if ev.Impact != models.ImpactHigh {
			continue
		}
		if ev.Timestamp.Before(start) || ev.Timestamp.After(end) {
			continue
		}
		if g.l != nil {
			g.l.Warn("high impact event active",
				applogger.String("title", ev.Title),
				applogger.String("currency", ev.Currency),
				applogger.String("pair", pair),
			)
		}
		return true
	}
	return false
}

var _ domsvc.NewsCalendar = (*Gate)(nil)
