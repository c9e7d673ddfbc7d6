package service

import (
	"time"

	"MeanRev/internal/domain/models"
)

// RegimeClassifier maps the latest feature vector to a regime verdict.
// A (nil, nil) return means no verdict is available (no artifact, or
// inference failed); callers must treat that as "do not trade".
type RegimeClassifier interface {
	Predict(fv models.FeatureVector) (*models.RegimeResult, error)
	Schema() models.FeatureSchema
	Ready() bool
}

// SignalEstimator produces the expected-return / win-probability / CVaR
// triple the Signal Gate evaluates. The explicit-fail variant is the
// production default when no model artifact is loaded.
type SignalEstimator interface {
	Estimate(fv models.FeatureVector) (models.EdgeEstimate, error)
}

// NewsCalendar answers whether a high-impact macro event currently
// blocks trading for an instrument. Pure read, no mutation.
type NewsCalendar interface {
	IsBlocked(pair string, now time.Time) bool
	Events() []models.NewsEvent
}
