// Package strategy - vwap.go implements a VWAP reversion strategy: an
// additional registrable strategy.
//
// VWAP is computed over the bar tail as a volume-weighted fair-value
// anchor. Buys when price sits meaningfully below VWAP (expecting
// reversion up to fair value); sells the mirror condition above VWAP.
// Confidence scales with the deviation normalized by ATR.
package strategy

import (
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// VWAPStrategy implements a VWAP reversion rule.
type VWAPStrategy struct {
	Period  int // default 20
	MinBars int // default 20
}

// NewVWAPStrategy creates a VWAP reversion strategy.
func NewVWAPStrategy() *VWAPStrategy {
	return &VWAPStrategy{Period: 20, MinBars: 20}
}

func (s *VWAPStrategy) ID() string { return "vwap_v1" }

// Evaluate applies the VWAP reversion rule.
func (s *VWAPStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars || set.ATR <= 0 {
		return holdOutput()
	}

	tail := bars.Tail(s.Period)
	vwap := vwapOf(tail)
	if vwap <= 0 {
		return holdOutput()
	}

	last := bars[len(bars)-1].Close
	deviation := (last - vwap) / set.ATR

	ind := map[string]float64{
		"vwap": vwap,
		"atr":  set.ATR,
	}

	switch {
	case deviation <= -1:
		return StrategyOutput{Signal: Buy, Confidence: clampConfidence(-deviation / 3), Indicators: ind}

	case deviation >= 1:
		return StrategyOutput{Signal: Sell, Confidence: clampConfidence(deviation / 3), Indicators: ind}

	default:
		return StrategyOutput{Signal: Hold, Confidence: 0, Indicators: ind}
	}
}

func vwapOf(bars bar.Series) float64 {
	var pv, v float64
	for _, b := range bars {
		typical := (b.High + b.Low + b.Close) / 3
		pv += typical * float64(b.Volume)
		v += float64(b.Volume)
	}
	if v == 0 {
		return 0
	}
	return pv / v
}
