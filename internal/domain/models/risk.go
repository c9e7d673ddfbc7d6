package models

// RiskState is the sizing state owned by the Risk Sizer. The high-water
// mark only increases; drawdown is recomputed from equity vs the mark
// every update and is never negative.
type RiskState struct {
	Equity          float64 `json:"equity"`
	HighWaterMark   float64 `json:"high_water_mark"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	VolTarget       float64 `json:"vol_target"`
}
