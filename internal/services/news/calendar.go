package news

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"MeanRev/internal/domain/models"
	xhttp "MeanRev/pkg/http"
	applogger "MeanRev/pkg/logger"
)

// LoadCalendarFile reads a JSON calendar from disk.
func LoadCalendarFile(path string) ([]models.NewsEvent, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	var events []models.NewsEvent
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	return events, nil
}

// Fetcher periodically pulls the calendar from an external provider and
// swaps it into the gate. A failed fetch keeps the previous calendar.
type Fetcher struct {
	client   *xhttp.Client
	url      string
	interval time.Duration
	gate     *Gate
	l        *applogger.Logger
}

// NewFetcher builds a calendar fetcher. interval defaults to one hour
// when non-positive.
func NewFetcher(url string, timeout, interval time.Duration, gate *Gate, l *applogger.Logger) *Fetcher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Fetcher{
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		url:      url,
		interval: interval,
		gate:     gate,
		l:        l,
	}
}

// Run refreshes the calendar until ctx is done. Blocking; run in its own
// goroutine.
func (f *Fetcher) Run(ctx context.Context) {
	f.refresh(ctx)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refresh(ctx)
		}
	}
}

func (f *Fetcher) refresh(ctx context.Context) {
	var events []models.NewsEvent
	err := f.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    f.url,
	}, &events)
	if err != nil {
		f.l.Error("calendar refresh failed", applogger.Error(err))
		return
	}
	f.gate.Replace(events)
	f.l.Info("calendar refreshed", applogger.Int("events", len(events)))
}
