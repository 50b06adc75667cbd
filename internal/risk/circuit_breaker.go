// Package risk - circuit_breaker.go provides the sticky kill-switch used
// by rule 2 of the RiskGate.
//
// Once day PnL or drawdown breaches its configured limit, the switch trips
// and stays tripped for the remainder of the UTC day — even if PnL
// recovers intraday — auto-resetting only when the UTC date rolls over.
// Close orders are never blocked by the switch; only new Opens are.
package risk

import (
	"fmt"
	"sync"
	"time"
)

// KillSwitch is a sticky, per-UTC-day trading halt triggered by day PnL or
// drawdown breaching a configured limit.
type KillSwitch struct {
	mu         sync.Mutex
	tripped    bool
	trippedDay string // YYYY-MM-DD (UTC) the switch tripped on
	reason     string
}

// NewKillSwitch creates an untripped kill switch.
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Check evaluates the switch for the current tick. If not already tripped
// today, it trips when dayPnLPct <= -maxDailyLoss or drawdownPct <=
// -maxDrawdown. Returns true if the switch is tripped (blocking new
// Opens) for this tick.
func (k *KillSwitch) Check(now time.Time, dayPnLPct, drawdownPct, maxDailyLoss, maxDrawdown float64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	today := now.UTC().Format("2006-01-02")

	if k.tripped && k.trippedDay != today {
		// New UTC day: the switch resets regardless of yesterday's cause.
		k.tripped = false
		k.trippedDay = ""
		k.reason = ""
	}

	if k.tripped {
		return true
	}

	if dayPnLPct <= -maxDailyLoss {
		k.trip(today, fmt.Sprintf("day PnL %.4f <= -%.4f", dayPnLPct, maxDailyLoss))
		return true
	}
	if drawdownPct <= -maxDrawdown {
		k.trip(today, fmt.Sprintf("drawdown %.4f <= -%.4f", drawdownPct, maxDrawdown))
		return true
	}

	return false
}

// Reason returns why the switch tripped, empty if untripped.
func (k *KillSwitch) Reason() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.reason
}

// Tripped reports the current state without evaluating new thresholds.
func (k *KillSwitch) Tripped() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tripped
}

func (k *KillSwitch) trip(day, reason string) {
	k.tripped = true
	k.trippedDay = day
	k.reason = reason
}
