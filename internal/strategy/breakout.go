// Package strategy - breakout.go implements an ATR channel breakout
// strategy, one of the three reference strategies.
//
// Buys when the last close clears the prior N-bar high with volume
// confirmation; sells the mirror break below the N-bar low. Confidence
// scales with how many ATRs past the channel edge the close landed, so a
// marginal break and a decisive one aren't treated the same.
package strategy

import (
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// BreakoutStrategy implements an ATR-confirmed channel breakout.
type BreakoutStrategy struct {
	Channel          int     // default 20
	VolumeMultiplier float64 // default 1.5
	MinBars          int     // default 25
}

// NewBreakoutStrategy creates a breakout strategy with sensible defaults.
func NewBreakoutStrategy() *BreakoutStrategy {
	return &BreakoutStrategy{Channel: 20, VolumeMultiplier: 1.5, MinBars: 25}
}

func (s *BreakoutStrategy) ID() string { return "breakout_v1" }

// Evaluate applies the channel-breakout rule.
func (s *BreakoutStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars || set.ATR <= 0 {
		return holdOutput()
	}

	// HighestHigh/LowestLow in set are computed over the full tail
	// including the current bar; resistance/support for a breakout call
	// must exclude it, so recompute over the prior bars only.
	prior := bars[:len(bars)-1]
	resistance := indicator.HighestHigh(prior, s.Channel)
	support := indicator.LowestLow(prior, s.Channel)
	avgVol := indicator.AverageVolume(prior, s.Channel)

	last := bars[len(bars)-1]

	ind := map[string]float64{
		"resistance": resistance,
		"support":    support,
		"atr":        set.ATR,
		"avg_volume": avgVol,
	}

	volConfirmed := avgVol <= 0 || float64(last.Volume) >= avgVol*s.VolumeMultiplier

	switch {
	case last.Close > resistance && volConfirmed:
		atrsAbove := (last.Close - resistance) / set.ATR
		return StrategyOutput{Signal: Buy, Confidence: clampConfidence(atrsAbove / 2), Indicators: ind}

	case last.Close < support && volConfirmed:
		atrsBelow := (support - last.Close) / set.ATR
		return StrategyOutput{Signal: Sell, Confidence: clampConfidence(atrsBelow / 2), Indicators: ind}

	default:
		return StrategyOutput{Signal: Hold, Confidence: 0, Indicators: ind}
	}
}
