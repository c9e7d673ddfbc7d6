package models

import "time"

// Signal actions.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Signal is an emitted trade signal. A nil *Signal means no trade this
// tick. CVaR is ≤ 0; more negative means a worse tail loss.
type Signal struct {
	Action         string    `json:"action"`
	ExpectedReturn float64   `json:"expected_return"`
	WinProb        float64   `json:"win_prob"`
	CVaR           float64   `json:"cvar"`
	Timestamp      time.Time `json:"timestamp"`
}

// EdgeEstimate is the raw model output the Signal Gate evaluates.
// ExpectedReturn is a per-bar fractional return; WinProb lies in [0,1];
// CVaR is ≤ 0.
type EdgeEstimate struct {
	ExpectedReturn float64
	WinProb        float64
	CVaR           float64
}
