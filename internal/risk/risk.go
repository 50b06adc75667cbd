// Package risk implements the RiskGate & Sizer (C8): hard guardrails that
// transform a per-symbol Ensemble decision into a sized order, or a
// Rejection.
//
// Design rules:
//   - Risk rules are implemented in Go and cannot be overridden by a
//     strategy or the ensemble.
//   - Rules are evaluated in a fixed order; any failure yields Hold (for
//     Opens) with a logged rejection reason. Close orders always pass.
//   - Capital preservation over returns: prefer not trading over a bad
//     trade.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/ensemble"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/market"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/regime"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

// Side is the order's direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Kind is the order type; only Market orders are supported.
type Kind string

const MarketOrder Kind = "market"

// Order is a sized directive handed to the PositionManager/Broker.
type Order struct {
	Symbol string
	Side   Side
	Qty    int
	Kind   Kind
}

// Rejection explains why a candidate order did not result in an Order.
type Rejection struct {
	Symbol string
	Reason string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("risk rejected %s: %s", r.Symbol, r.Reason)
}

// PositionSnapshot is one symbol's current holding, as the broker reports it.
type PositionSnapshot struct {
	Qty      int
	AvgEntry float64
}

// PortfolioSnapshot is the view of broker + day state the Gate sizes against.
type PortfolioSnapshot struct {
	Cash        float64
	Equity      float64
	Positions   map[string]PositionSnapshot
	DayPnLPct   float64 // negative = loss, e.g. -0.021 for -2.1%
	DrawdownPct float64 // negative = drawdown from peak equity
}

// Gate enforces the five ordered risk rules and sizes approved Opens.
type Gate struct {
	cfg        config.RiskConfig
	sizing     config.SizingConfig
	calendar   *market.Calendar
	ignoreHrs  bool
	killSwitch *KillSwitch
}

// New builds a Gate. calendar may be nil only if ignoreMarketHours is true.
func New(riskCfg config.RiskConfig, sizingCfg config.SizingConfig, calendar *market.Calendar, ignoreMarketHours bool) *Gate {
	return &Gate{
		cfg:       riskCfg,
		sizing:    sizingCfg,
		calendar:  calendar,
		ignoreHrs: ignoreMarketHours,
		killSwitch: NewKillSwitch(),
	}
}

// Size applies the five ordered rules to a symbol's Ensemble decision and
// either returns a sized Order or a Rejection. A Hold decision never
// reaches sizing; it simply returns (zero Order, nil) — nothing to do.
func (g *Gate) Size(
	symbol string,
	decision ensemble.Decision,
	r regime.Regime,
	volRatio float64,
	atr float64,
	price float64,
	snapshot PortfolioSnapshot,
	now time.Time,
) (Order, *Rejection) {
	if decision.Signal == strategy.Hold {
		return Order{}, nil
	}

	side := SideBuy
	if decision.Signal == strategy.Sell {
		side = SideSell
	}

	isClose := isClosingOrder(symbol, side, snapshot)

	// Close orders bypass every gate below — we always allow exiting.
	if isClose {
		qty := closeQty(symbol, snapshot)
		if qty <= 0 {
			return Order{}, &Rejection{Symbol: symbol, Reason: "no position to close"}
		}
		return Order{Symbol: symbol, Side: side, Qty: qty, Kind: MarketOrder}, nil
	}

	// Rule 1: Session gate.
	if !g.ignoreHrs && g.calendar != nil && !g.calendar.IsMarketOpen(now) {
		return Order{}, &Rejection{Symbol: symbol, Reason: "outside market hours"}
	}

	// Rule 2: Kill-switch. Sticky for the UTC day once tripped.
	if g.killSwitch.Check(now, snapshot.DayPnLPct, snapshot.DrawdownPct, g.cfg.MaxDailyLoss, g.cfg.MaxDrawdown) {
		return Order{}, &Rejection{Symbol: symbol, Reason: "kill switch engaged: " + g.killSwitch.Reason()}
	}

	// Rule 3: Position cap. Sized against the real candidate notional (Rule
	// 5's formula), not a single share's price/equity ratio — a cheap
	// per-share price would otherwise pass this check for any quantity.
	numOpen := len(snapshot.Positions)
	if numOpen >= g.cfg.MaxPositions {
		return Order{}, &Rejection{Symbol: symbol, Reason: fmt.Sprintf("max_positions reached: %d/%d", numOpen, g.cfg.MaxPositions)}
	}
	qty := g.size(decision, r, volRatio, price, snapshot.Equity)
	candidatePct := float64(qty) * price / snapshot.Equity
	exposurePct := symbolExposurePct(symbol, snapshot)
	if exposurePct+candidatePct > g.cfg.MaxPositionPct {
		return Order{}, &Rejection{Symbol: symbol, Reason: fmt.Sprintf(
			"max_position_pct exceeded: %.4f+%.4f > %.4f", exposurePct, candidatePct, g.cfg.MaxPositionPct)}
	}

	// Rule 4: Confidence floor.
	if decision.Confidence < g.cfg.ConfidenceFloor {
		return Order{}, &Rejection{Symbol: symbol, Reason: fmt.Sprintf(
			"confidence %.2f below floor %.2f", decision.Confidence, g.cfg.ConfidenceFloor)}
	}

	// Rule 5: Sizing (qty already computed above for the Rule 3 exposure check).
	if qty < 1 {
		return Order{}, &Rejection{Symbol: symbol, Reason: "sized quantity below 1"}
	}

	return Order{Symbol: symbol, Side: side, Qty: qty, Kind: MarketOrder}, nil
}

func (g *Gate) size(decision ensemble.Decision, r regime.Regime, volRatio, price, equity float64) int {
	stopPctEff := clamp(0.5*volRatio+0.5, 0.5, 2.0) * g.sizing.StopPct
	if stopPctEff <= 0 || price <= 0 {
		return 0
	}

	qty0 := (equity * g.sizing.RiskPerTrade) / (price * stopPctEff)

	mc := confidenceMultiplier(decision.Confidence)
	mr := regimeMultiplier(r)

	return int(math.Floor(qty0 * mc * mr))
}

func confidenceMultiplier(c float64) float64 {
	switch {
	case c >= 0.75:
		return 1.3
	case c >= 0.60:
		return 1.0
	case c >= 0.40:
		return 0.7
	default:
		return 0.4
	}
}

func regimeMultiplier(r regime.Regime) float64 {
	switch r {
	case regime.TrendUp, regime.TrendDown:
		return 1.2
	case regime.Range:
		return 0.8
	case regime.Volatile:
		return 0.7
	default:
		return 1.0
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isClosingOrder(symbol string, side Side, snapshot PortfolioSnapshot) bool {
	pos, ok := snapshot.Positions[symbol]
	if !ok || pos.Qty == 0 {
		return false
	}
	// A long position closes on a Sell signal; a short position closes on a Buy.
	if pos.Qty > 0 {
		return side == SideSell
	}
	return side == SideBuy
}

func closeQty(symbol string, snapshot PortfolioSnapshot) int {
	pos, ok := snapshot.Positions[symbol]
	if !ok {
		return 0
	}
	if pos.Qty < 0 {
		return -pos.Qty
	}
	return pos.Qty
}

func symbolExposurePct(symbol string, snapshot PortfolioSnapshot) float64 {
	pos, ok := snapshot.Positions[symbol]
	if !ok || snapshot.Equity <= 0 {
		return 0
	}
	notional := math.Abs(float64(pos.Qty)) * pos.AvgEntry
	return notional / snapshot.Equity
}
