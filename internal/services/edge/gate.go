package edge

import (
	"fmt"

	"MeanRev/internal/domain/models"
	domsvc "MeanRev/internal/domain/service"
)

// GateConfig holds the soft-gate thresholds. Cost and MaxCVaR are
// pointers because 0 is a legitimate setting for both (free execution,
// no tail-loss limit); nil takes the documented default. The two
// float fields default on their zero value.
type GateConfig struct {
	Cost         *float64 // round-trip cost, default 1bp
	SafetyFactor float64  // margin over cost, default 1.0
	MinWinProb   float64  // default 0.55
	MaxCVaR      *float64 // worst acceptable tail loss, default -0.05
}

// thresholds is the fully resolved form of GateConfig.
type thresholds struct {
	cost         float64
	safetyFactor float64
	minWinProb   float64
	maxCVaR      float64
}

func (c GateConfig) resolve() thresholds {
	t := thresholds{cost: 0.0001, safetyFactor: 1.0, minWinProb: 0.55, maxCVaR: -0.05}
	if c.Cost != nil {
		t.cost = *c.Cost
	}
	if c.SafetyFactor != 0 {
		t.safetyFactor = c.SafetyFactor
	}
	if c.MinWinProb != 0 {
		t.minWinProb = c.MinWinProb
	}
	if c.MaxCVaR != nil {
		t.maxCVaR = *c.MaxCVaR
	}
	return t
}

// Gate decides whether a trade signal is emitted. The hard gate is the
// regime verdict (which already carries the news override); the soft
// gates all must pass on the estimator's triple.
type Gate struct {
	cfg       thresholds
	estimator domsvc.SignalEstimator
}

// NewGate builds the signal gate over an estimator variant.
func NewGate(cfg GateConfig, estimator domsvc.SignalEstimator) *Gate {
	return &Gate{cfg: cfg.resolve(), estimator: estimator}
}

// Evaluate returns the signal for this tick, or nil when any gate holds
// it back. An estimator error propagates so a missing production model
// fails loudly instead of silently skipping.
func (g *Gate) Evaluate(fv models.FeatureVector, regime *models.RegimeResult) (*models.Signal, error) {
	if regime == nil || !regime.Tradeable {
		return nil, nil
	}

	est, err := g.estimator.Estimate(fv)
	if err != nil {
		return nil, fmt.Errorf("estimate edge: %w", err)
	}

	if est.ExpectedReturn <= g.cfg.cost*g.cfg.safetyFactor {
		return nil, nil
	}
	if est.WinProb <= g.cfg.minWinProb {
		return nil, nil
	}
	if est.CVaR < g.cfg.maxCVaR {
		return nil, nil
	}

	action := models.ActionSell
	if est.ExpectedReturn > 0 {
		action = models.ActionBuy
	}
	return &models.Signal{
		Action:         action,
		ExpectedReturn: est.ExpectedReturn,
		WinProb:        est.WinProb,
		CVaR:           est.CVaR,
		Timestamp:      regime.Timestamp,
	}, nil
}
