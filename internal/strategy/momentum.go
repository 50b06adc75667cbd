// Package strategy - momentum.go implements a MACD-plus-volume momentum
// strategy, the third reference strategy.
//
// Buys when the MACD histogram and the MACD line are both positive with
// above-average volume (confirmed upward momentum); sells the mirror
// condition.
// Confidence scales with the histogram's magnitude relative to ATR, a
// price-scale-independent measure of how strong the momentum reading is.
package strategy

import (
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// MomentumStrategy implements MACD+volume momentum.
type MomentumStrategy struct {
	VolumeMultiplier float64 // default 1.2
	MinBars          int     // default 40
}

// NewMomentumStrategy creates a momentum strategy with sensible defaults.
func NewMomentumStrategy() *MomentumStrategy {
	return &MomentumStrategy{VolumeMultiplier: 1.2, MinBars: 40}
}

func (s *MomentumStrategy) ID() string { return "momentum_v1" }

// Evaluate applies the MACD-histogram-plus-volume momentum rule.
func (s *MomentumStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars || set.ATR <= 0 {
		return holdOutput()
	}

	ind := map[string]float64{
		"macd":       set.MACD,
		"macd_hist":  set.MACDHist,
		"avg_volume": set.AvgVolume,
	}

	last := bars[len(bars)-1]
	volConfirmed := set.AvgVolume <= 0 || float64(last.Volume) >= set.AvgVolume*s.VolumeMultiplier
	magnitude := clampConfidence(abs(set.MACDHist) / set.ATR / 2)

	switch {
	case set.MACDHist > 0 && set.MACD > 0 && volConfirmed:
		return StrategyOutput{Signal: Buy, Confidence: magnitude, Indicators: ind}

	case set.MACDHist < 0 && set.MACD < 0 && volConfirmed:
		return StrategyOutput{Signal: Sell, Confidence: magnitude, Indicators: ind}

	default:
		return StrategyOutput{Signal: Hold, Confidence: 0, Indicators: ind}
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
