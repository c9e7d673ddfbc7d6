package models

import "time"

// Regime class labels, matching the training classes (0, 1, 2).
const (
	RegimeStable      = "Stable_Flow"
	RegimeDirectional = "Directional_Vol"
	RegimeEvent       = "Event_Risk"
)

// RegimeResult is the classifier verdict for one tick. Probabilities sum
// to 1 and each lies in [0,1]; entropy is Shannon entropy over the
// triple and never negative. Consumed immediately, not persisted.
type RegimeResult struct {
	ProbStable      float64   `json:"prob_stable"`
	ProbDirectional float64   `json:"prob_directional"`
	ProbEvent       float64   `json:"prob_event"`
	Entropy         float64   `json:"entropy"`
	Tradeable       bool      `json:"tradeable"`
	OverrideActive  bool      `json:"override_active,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Probs returns the class probabilities in training order.
func (r RegimeResult) Probs() []float64 {
	return []float64{r.ProbStable, r.ProbDirectional, r.ProbEvent}
}
