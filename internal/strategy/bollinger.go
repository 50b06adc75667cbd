// Package strategy - bollinger.go implements a Bollinger Band breakout
// strategy: an additional registrable strategy.
//
// Bands are the slow SMA ± k standard deviations of recent closes. Buys
// when price closes above the upper band (a squeeze resolving upward);
// sells the mirror break below the lower band. Confidence scales with how
// many band-widths past the edge the close landed.
package strategy

import (
	"math"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/indicator"
)

// BollingerStrategy implements a Bollinger Band breakout rule.
type BollingerStrategy struct {
	Period   int     // default 20
	NumStdev float64 // default 2.0
	MinBars  int     // default 20
}

// NewBollingerStrategy creates a Bollinger Band strategy with standard
// 20-period/2-stdev bands.
func NewBollingerStrategy() *BollingerStrategy {
	return &BollingerStrategy{Period: 20, NumStdev: 2.0, MinBars: 20}
}

func (s *BollingerStrategy) ID() string { return "bollinger_v1" }

// Evaluate applies the Bollinger Band breakout rule.
func (s *BollingerStrategy) Evaluate(bars bar.Series, set indicator.Set) StrategyOutput {
	if len(bars) < s.MinBars || set.SMASlow <= 0 {
		return holdOutput()
	}

	tail := bars.Tail(s.Period)
	stdev := stdevOfCloses(tail)
	if stdev <= 0 {
		return holdOutput()
	}

	upper := set.SMASlow + s.NumStdev*stdev
	lower := set.SMASlow - s.NumStdev*stdev
	last := bars[len(bars)-1].Close

	ind := map[string]float64{
		"sma_slow":    set.SMASlow,
		"upper_band":  upper,
		"lower_band":  lower,
		"band_stdev":  stdev,
	}

	switch {
	case last > upper:
		widths := (last - upper) / stdev
		return StrategyOutput{Signal: Buy, Confidence: clampConfidence(widths / 2), Indicators: ind}

	case last < lower:
		widths := (lower - last) / stdev
		return StrategyOutput{Signal: Sell, Confidence: clampConfidence(widths / 2), Indicators: ind}

	default:
		return StrategyOutput{Signal: Hold, Confidence: 0, Indicators: ind}
	}
}

func stdevOfCloses(bars bar.Series) float64 {
	if len(bars) == 0 {
		return 0
	}
	var mean float64
	for _, b := range bars {
		mean += b.Close
	}
	mean /= float64(len(bars))

	var variance float64
	for _, b := range bars {
		d := b.Close - mean
		variance += d * d
	}
	variance /= float64(len(bars))
	return math.Sqrt(variance)
}
