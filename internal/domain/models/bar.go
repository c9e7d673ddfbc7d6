package models

import "time"

// Bar represents one OHLCV(+spread) observation at a fixed timestamp.
// Bars are immutable once produced and strictly ordered by Timestamp.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Spread    float64
	Pair      string
}
