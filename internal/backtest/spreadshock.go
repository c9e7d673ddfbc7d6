package backtest

import (
	"fmt"

	"MeanRev/internal/domain/models"
	"MeanRev/internal/services/features"
	applogger "MeanRev/pkg/logger"
)

// spreadFactorLimit kills a candle whose spread runs hot against its
// trailing mean.
const spreadFactorLimit = 2.0

// SpreadShockResult counts how many candles stay tradeable after the
// shock. Trading frequency is expected to drop as the shock widens.
type SpreadShockResult struct {
	ShockPct       float64 `json:"shock_pct"`
	TotalBars      int     `json:"total_bars"`
	TradeableCount int     `json:"tradeable_count"`
}

// SpreadShock widens every spread by shockPct percent, recomputes the
// feature set over the shocked series, and counts the candles whose
// spread factor stays inside the tradeable limit.
func SpreadShock(engine *features.Engine, bars []models.Bar, shockPct float64, l *applogger.Logger) (*SpreadShockResult, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("spread shock needs bars")
	}

	shocked := make([]models.Bar, len(bars))
	copy(shocked, bars)
	factor := shockPct/100.0 + 1.0
	for i := range shocked {
		shocked[i].Spread *= factor
	}

	rows, err := engine.Process(shocked)
	if err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}

	tradeable := 0
	for _, row := range rows {
		sf, ok := row.Get(models.FeatSpreadFactor)
		if ok && sf > spreadFactorLimit {
			continue
		}
		tradeable++
	}

	l.Info("spread shock complete",
		applogger.Any("shock_pct", shockPct),
		applogger.Int("tradeable", tradeable),
		applogger.Int("total", len(bars)),
	)
	return &SpreadShockResult{
		ShockPct:       shockPct,
		TotalBars:      len(bars),
		TradeableCount: tradeable,
	}, nil
}
