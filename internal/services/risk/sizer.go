package risk

import (
	"MeanRev/internal/domain/models"
	applogger "MeanRev/pkg/logger"
)

// Volatility floor and its substitute used when the supplied volatility
// is too close to zero to divide by.
const (
	volEpsilon = 1e-6
	volDefault = 0.01
)

// Drawdown throttle breakpoints and modifiers, overridable via config.
const (
	defaultThrottleSoft  = 0.03
	defaultThrottleHard  = 0.05
	defaultSoftModifier  = 0.50
	defaultHardModifier  = 0.25
	defaultVolTarget     = 0.15
	defaultInitialEquity = 10000.0
)

// Sizer converts equity, a volatility-target risk budget and a
// drawdown throttle into a position size. vol_target and the volatility
// passed to Size must share the same scale (both per-bar here); the
// contract documents that, it is not validated internally.
type Sizer struct {
	state        models.RiskState
	throttleSoft float64
	throttleHard float64
	softModifier float64
	hardModifier float64
	l            *applogger.Logger
}

// Config customizes the sizer; zero values take defaults.
type Config struct {
	InitialEquity float64
	VolTarget     float64
	ThrottleSoft  float64
	ThrottleHard  float64
	SoftModifier  float64
	HardModifier  float64
}

// NewSizer creates a sizer in a fresh state at the high-water mark.
func NewSizer(cfg Config, l *applogger.Logger) *Sizer {
	if cfg.InitialEquity <= 0 {
		cfg.InitialEquity = defaultInitialEquity
	}
	if cfg.VolTarget <= 0 {
		cfg.VolTarget = defaultVolTarget
	}
	if cfg.ThrottleSoft <= 0 {
		cfg.ThrottleSoft = defaultThrottleSoft
	}
	if cfg.ThrottleHard <= 0 {
		cfg.ThrottleHard = defaultThrottleHard
	}
	if cfg.SoftModifier <= 0 {
		cfg.SoftModifier = defaultSoftModifier
	}
	if cfg.HardModifier <= 0 {
		cfg.HardModifier = defaultHardModifier
	}
	return &Sizer{
		state: models.RiskState{
			Equity:        cfg.InitialEquity,
			HighWaterMark: cfg.InitialEquity,
			VolTarget:     cfg.VolTarget,
		},
		throttleSoft: cfg.ThrottleSoft,
		throttleHard: cfg.ThrottleHard,
		softModifier: cfg.SoftModifier,
		hardModifier: cfg.HardModifier,
		l:            l,
	}
}

// State returns a copy of the current risk state.
func (s *Sizer) State() models.RiskState { return s.state }

// UpdateEquity records the latest equity, raises the high-water mark
// when exceeded, and recomputes drawdown. Drawdown is never negative
// and guards a non-positive high-water mark.
func (s *Sizer) UpdateEquity(equity float64) {
	s.state.Equity = equity
	if equity > s.state.HighWaterMark {
		s.state.HighWaterMark = equity
	}
	if s.state.HighWaterMark > 0 {
		dd := (s.state.HighWaterMark - s.state.Equity) / s.state.HighWaterMark
		if dd < 0 {
			dd = 0
		}
		s.state.CurrentDrawdown = dd
	} else {
		s.state.CurrentDrawdown = 0
	}
}

// ThrottleModifier maps the current drawdown to a multiplicative size
// modifier: > hard breakpoint → hard modifier, > soft → soft, else 1.
func (s *Sizer) ThrottleModifier() float64 {
	dd := s.state.CurrentDrawdown
	switch {
	case dd > s.throttleHard:
		if s.l != nil {
			s.l.Warn("drawdown past hard throttle", applogger.Any("drawdown", dd))
		}
		return s.hardModifier
	case dd > s.throttleSoft:
		if s.l != nil {
			s.l.Warn("drawdown past soft throttle", applogger.Any("drawdown", dd))
		}
		return s.softModifier
	default:
		return 1.0
	}
}

// Size computes the position size for the signal at the given price and
// volatility: (equity * vol_target) / (price * volatility), throttled by
// the drawdown modifier evaluated now, not at signal time. A nil signal
// sizes to zero; volatility at or below 1e-6 substitutes the floor
// default rather than dividing by near-zero.
func (s *Sizer) Size(signal *models.Signal, price, volatility float64) float64 {
	if signal == nil {
		return 0
	}
	if volatility <= volEpsilon {
		if s.l != nil {
			s.l.Warn("volatility below floor, substituting default", applogger.Any("volatility", volatility))
		}
		volatility = volDefault
	}
	if price <= 0 {
		return 0
	}
	base := (s.state.Equity * s.state.VolTarget) / (price * volatility)
	return base * s.ThrottleModifier()
}
