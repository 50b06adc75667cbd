// Package indicator computes technical indicators over bar series and
// memoizes them behind a bounded, fingerprint-keyed cache.
//
// The math here (ATR, RSI, SMA, ROC, highest-high/lowest-low, average
// volume) operates on bar.Series, plus MACD for the momentum reference
// strategy.
package indicator

import (
	"math"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/bar"
)

// Set is the derived table the cache produces for a bar tail: the core
// fields plus the extras the reference strategies need (macd_hist, roc,
// highest-high/lowest-low, average volume).
type Set struct {
	SMAFast     float64
	SMASlow     float64
	RSI         float64
	MACD        float64
	MACDSignal  float64
	MACDHist    float64
	ATR         float64
	ROC         float64
	HighestHigh float64
	LowestLow   float64
	AvgVolume   float64
}

// Periods configures the lookback windows used to derive a Set. Callers
// that don't care can use DefaultPeriods.
type Periods struct {
	SMAFast, SMASlow   int
	RSI                int
	MACDFast, MACDSlow int
	MACDSignal         int
	ATR                int
	ROC                int
	Channel            int // for highest-high / lowest-low
	Volume             int
}

// DefaultPeriods returns the standard strategy lookback windows.
func DefaultPeriods() Periods {
	return Periods{
		SMAFast: 9, SMASlow: 20,
		RSI:        14,
		MACDFast:   12, MACDSlow: 26, MACDSignal: 9,
		ATR:     14,
		ROC:     10,
		Channel: 20,
		Volume:  20,
	}
}

// Compute derives the full indicator Set for a bar series. Purely
// functional: same series (same fingerprint) always yields the same Set.
func Compute(series bar.Series, p Periods) Set {
	return Set{
		SMAFast:     SMA(series, p.SMAFast),
		SMASlow:     SMA(series, p.SMASlow),
		RSI:         RSI(series, p.RSI),
		ATR:         ATR(series, p.ATR),
		ROC:         ROC(series, p.ROC),
		HighestHigh: HighestHigh(series, p.Channel),
		LowestLow:   LowestLow(series, p.Channel),
		AvgVolume:   AverageVolume(series, p.Volume),
		MACD:        macdLine(series, p.MACDFast, p.MACDSlow),
		MACDSignal:  0, // left zero here; ComputeWithMACD fills it from the MACD line's history
	}
}

// ComputeWithMACD is Compute plus the MACD signal line and histogram,
// which require the MACD line's own history (an EMA over it) rather than
// just the current bar tail; kept as a separate entry point so Compute
// skips the signal-line EMA in the common case where only the
// instantaneous line is needed.
func ComputeWithMACD(series bar.Series, p Periods) Set {
	s := Compute(series, p)
	macd, signal, hist := MACD(series, p.MACDFast, p.MACDSlow, p.MACDSignal)
	s.MACD, s.MACDSignal, s.MACDHist = macd, signal, hist
	return s
}

// ATR computes the Average True Range over the given period.
// True Range = max(high-low, |high-prevClose|, |low-prevClose|).
// Falls back to the last bar's range if insufficient data.
func ATR(series bar.Series, period int) float64 {
	if len(series) == 0 {
		return 0
	}
	if len(series) < period+1 {
		last := series[len(series)-1]
		return last.High - last.Low
	}

	var totalTR float64
	for i := len(series) - period; i < len(series); i++ {
		curr := series[i]
		prev := series[i-1]

		tr1 := curr.High - curr.Low
		tr2 := math.Abs(curr.High - prev.Close)
		tr3 := math.Abs(curr.Low - prev.Close)

		totalTR += math.Max(tr1, math.Max(tr2, tr3))
	}

	return totalTR / float64(period)
}

// RSI computes the Relative Strength Index using Wilder smoothing.
// Returns 50 (neutral) if insufficient data.
func RSI(series bar.Series, period int) float64 {
	if len(series) < period+1 {
		return 50
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		change := series[i].Close - series[i-1].Close
		if change > 0 {
			gainSum += change
		} else {
			lossSum += math.Abs(change)
		}
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(series); i++ {
		change := series[i].Close - series[i-1].Close
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = math.Abs(change)
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// SMA computes the Simple Moving Average of closes over the given period.
// Returns 0 if insufficient data.
func SMA(series bar.Series, period int) float64 {
	if len(series) < period || period <= 0 {
		return 0
	}
	var sum float64
	for i := len(series) - period; i < len(series); i++ {
		sum += series[i].Close
	}
	return sum / float64(period)
}

// EMA computes the Exponential Moving Average of closes over the given
// period, seeded with a simple average of the first `period` closes.
func EMA(closes []float64, period int) []float64 {
	if len(closes) < period || period <= 0 {
		return nil
	}
	k := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(closes))

	var seed float64
	for i := 0; i < period; i++ {
		seed += closes[i]
	}
	seed /= float64(period)
	out[period-1] = seed

	for i := period; i < len(closes); i++ {
		out[i] = closes[i]*k + out[i-1]*(1-k)
	}
	return out
}

// macdLine returns just the instantaneous MACD line (fast EMA - slow EMA).
func macdLine(series bar.Series, fast, slow int) float64 {
	if len(series) < slow {
		return 0
	}
	closes := closesOf(series)
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	if fastEMA == nil || slowEMA == nil {
		return 0
	}
	return fastEMA[len(fastEMA)-1] - slowEMA[len(slowEMA)-1]
}

// MACD computes the MACD line, its signal line (EMA of the MACD line),
// and the histogram (line - signal). Standard parameters: 12/26/9.
func MACD(series bar.Series, fast, slow, signal int) (line, sig, hist float64) {
	if len(series) < slow+signal {
		return 0, 0, 0
	}
	closes := closesOf(series)
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	if fastEMA == nil || slowEMA == nil {
		return 0, 0, 0
	}

	macdSeries := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		macdSeries = append(macdSeries, fastEMA[i]-slowEMA[i])
	}
	if len(macdSeries) < signal {
		return macdSeries[len(macdSeries)-1], 0, macdSeries[len(macdSeries)-1]
	}

	signalEMA := EMA(macdSeries, signal)
	line = macdSeries[len(macdSeries)-1]
	sig = signalEMA[len(signalEMA)-1]
	hist = line - sig
	return line, sig, hist
}

// ROC computes the Rate of Change (fraction, not percent) over the period.
func ROC(series bar.Series, period int) float64 {
	if len(series) < period+1 || period <= 0 {
		return 0
	}
	current := series[len(series)-1].Close
	past := series[len(series)-1-period].Close
	if past == 0 {
		return 0
	}
	return (current - past) / past
}

// HighestHigh returns the highest high over the last `period` bars.
func HighestHigh(series bar.Series, period int) float64 {
	if len(series) == 0 || period <= 0 {
		return 0
	}
	start := len(series) - period
	if start < 0 {
		start = 0
	}
	highest := series[start].High
	for i := start + 1; i < len(series); i++ {
		if series[i].High > highest {
			highest = series[i].High
		}
	}
	return highest
}

// LowestLow returns the lowest low over the last `period` bars.
func LowestLow(series bar.Series, period int) float64 {
	if len(series) == 0 || period <= 0 {
		return 0
	}
	start := len(series) - period
	if start < 0 {
		start = 0
	}
	lowest := series[start].Low
	for i := start + 1; i < len(series); i++ {
		if series[i].Low < lowest {
			lowest = series[i].Low
		}
	}
	return lowest
}

// AverageVolume computes the average volume over the last `period` bars.
func AverageVolume(series bar.Series, period int) float64 {
	if len(series) == 0 || period <= 0 {
		return 0
	}
	start := len(series) - period
	if start < 0 {
		start = 0
	}
	var total float64
	count := 0
	for i := start; i < len(series); i++ {
		total += float64(series[i].Volume)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// StdevReturns computes the standard deviation of single-bar log returns
// over the last `period` bars, used by the RegimeDetector's vol_ratio.
func StdevReturns(series bar.Series, period int) float64 {
	tail := series.Tail(period + 1)
	if len(tail) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(tail)-1)
	for i := 1; i < len(tail); i++ {
		if tail[i-1].Close == 0 {
			continue
		}
		returns = append(returns, math.Log(tail[i].Close/tail[i-1].Close))
	}
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

func closesOf(series bar.Series) []float64 {
	out := make([]float64, len(series))
	for i, b := range series {
		out[i] = b.Close
	}
	return out
}
