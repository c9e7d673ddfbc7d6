package news

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MeanRev/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 4, 1, 14, 0, 0, 0, time.UTC)

func event(currency, impact string, offset time.Duration) models.NewsEvent {
	return models.NewsEvent{
		Title:     "NFP",
		Currency:  currency,
		Impact:    impact,
		Timestamp: now.Add(offset),
	}
}

func TestBlockedInsideWindow(t *testing.T) {
	g := NewGate([]models.NewsEvent{event("USD", models.ImpactHigh, 45*time.Minute)}, nil)
	assert.True(t, g.IsBlocked("EURUSD", now))
}

func TestNotBlockedOutsideWindow(t *testing.T) {
	g := NewGate([]models.NewsEvent{event("USD", models.ImpactHigh, 90*time.Minute)}, nil)
	assert.False(t, g.IsBlocked("EURUSD", now))

	// just past the trailing 30 minute edge
	g = NewGate([]models.NewsEvent{event("USD", models.ImpactHigh, -31*time.Minute)}, nil)
	assert.False(t, g.IsBlocked("EURUSD", now))
}

func TestRecentEventStillBlocks(t *testing.T) {
	g := NewGate([]models.NewsEvent{event("EUR", models.ImpactHigh, -20*time.Minute)}, nil)
	assert.True(t, g.IsBlocked("EURUSD", now))
}

func TestImpactAndCurrencyFilters(t *testing.T) {
	g := NewGate([]models.NewsEvent{
		event("USD", models.ImpactMedium, 10*time.Minute),
		event("JPY", models.ImpactHigh, 10*time.Minute),
	}, nil)
	assert.False(t, g.IsBlocked("EURUSD", now))
	assert.True(t, g.IsBlocked("USDJPY", now))
}

func TestMalformedPairNeverBlocks(t *testing.T) {
	g := NewGate([]models.NewsEvent{event("USD", models.ImpactHigh, 0)}, nil)
	assert.False(t, g.IsBlocked("EUR", now))
	assert.False(t, g.IsBlocked("", now))
}

func TestReplaceSwapsCalendar(t *testing.T) {
	g := NewGate(nil, nil)
	assert.False(t, g.IsBlocked("EURUSD", now))

	g.Replace([]models.NewsEvent{event("EUR", models.ImpactHigh, 5*time.Minute)})
	assert.True(t, g.IsBlocked("EURUSD", now))
	assert.Len(t, g.Events(), 1)
}

func TestEventsReturnsCopy(t *testing.T) {
	g := NewGate([]models.NewsEvent{event("USD", models.ImpactHigh, 0)}, nil)
	evs := g.Events()
	evs[0].Currency = "CHF"
	assert.Equal(t, "USD", g.Events()[0].Currency)
}

func TestLoadCalendarFile(t *testing.T) {
	events := []models.NewsEvent{event("USD", models.ImpactHigh, time.Hour)}
	b, err := json.Marshal(events)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "calendar.json")
	require.NoError(t, os.WriteFile(path, b, 0o644))

	loaded, err := LoadCalendarFile(path)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "USD", loaded[0].Currency)

	_, err = LoadCalendarFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
