package models

import "time"

// News impact levels.
const (
	ImpactLow    = "Low"
	ImpactMedium = "Medium"
	ImpactHigh   = "High"
)

// NewsEvent is one entry of the read-only economic calendar.
type NewsEvent struct {
	Title     string    `json:"title"`
	Currency  string    `json:"currency"`
	Impact    string    `json:"impact"`
	Timestamp time.Time `json:"timestamp"`
}
