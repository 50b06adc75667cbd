package risk

import (
	"testing"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/ensemble"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/market"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/regime"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositions:    5,
		MaxPositionPct:  0.20,
		MaxDailyLoss:    0.02,
		MaxDrawdown:     0.05,
		ConfidenceFloor: 0.3,
	}
}

func testSizingConfig() config.SizingConfig {
	return config.SizingConfig{
		RiskPerTrade: 0.001,
		StopPct:      0.02,
	}
}

func newTestGate() *Gate {
	return New(testRiskConfig(), testSizingConfig(), nil, true)
}

func emptyPortfolio() PortfolioSnapshot {
	return PortfolioSnapshot{
		Cash:      100000,
		Equity:    100000,
		Positions: map[string]PositionSnapshot{},
	}
}

func TestSizeHoldDecisionProducesNothing(t *testing.T) {
	g := newTestGate()
	decision := ensemble.Decision{Signal: strategy.Hold, Confidence: 0.9}

	order, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, emptyPortfolio(), time.Now())
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej)
	}
	if order != (Order{}) {
		t.Fatalf("expected zero order for a Hold decision, got %+v", order)
	}
}

func TestSizeApprovesValidBuy(t *testing.T) {
	g := newTestGate()
	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.8}

	order, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, emptyPortfolio(), time.Now())
	if rej != nil {
		t.Fatalf("expected approval, got rejection: %v", rej)
	}
	if order.Side != SideBuy || order.Qty < 1 {
		t.Fatalf("expected a sized buy order, got %+v", order)
	}
}

func TestSizeRejectsBelowConfidenceFloor(t *testing.T) {
	g := newTestGate()
	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.1}

	_, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, emptyPortfolio(), time.Now())
	if rej == nil {
		t.Fatal("expected rejection for confidence below floor")
	}
}

func TestSizeRejectsWhenMaxPositionsReached(t *testing.T) {
	g := newTestGate()
	snapshot := emptyPortfolio()
	for _, sym := range []string{"A", "B", "C", "D", "E"} {
		snapshot.Positions[sym] = PositionSnapshot{Qty: 10, AvgEntry: 50}
	}

	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.8}
	_, rej := g.Size("F", decision, regime.TrendUp, 1.0, 0.5, 100, snapshot, time.Now())
	if rej == nil {
		t.Fatal("expected rejection at max positions")
	}
}

func TestSizeRejectsWhenPositionPctExceeded(t *testing.T) {
	// An aggressive risk_per_trade sizes a large qty; the real candidate
	// notional (qty*price/equity), not a single share's price/equity, must
	// still be checked against max_position_pct before the order is sized.
	g := New(testRiskConfig(), config.SizingConfig{RiskPerTrade: 0.01, StopPct: 0.02}, nil, true)
	snapshot := emptyPortfolio()

	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.8}
	order, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, snapshot, time.Now())
	if rej == nil {
		t.Fatalf("expected rejection for exceeding max_position_pct, got approved order %+v", order)
	}
}

func TestSizeRejectsOutsideMarketHours(t *testing.T) {
	cal := market.NewCalendarFromHolidaysWithHours(nil, market.Hours{
		Location: time.UTC, OpenHour: 9, OpenMin: 0, CloseHour: 17, CloseMin: 0,
	})
	g := New(testRiskConfig(), testSizingConfig(), cal, false)

	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.8}
	// 2026-01-03 is a Saturday — market closed regardless of time-of-day.
	closedTime := time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)
	_, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, emptyPortfolio(), closedTime)
	if rej == nil {
		t.Fatal("expected rejection outside market hours")
	}
}

func TestSizeKillSwitchBlocksNewOpens(t *testing.T) {
	g := newTestGate()
	snapshot := emptyPortfolio()
	snapshot.DayPnLPct = -0.03 // breaches max_daily_loss of 0.02

	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.8}
	_, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, snapshot, time.Now())
	if rej == nil {
		t.Fatal("expected kill switch rejection")
	}
}

func TestSizeClosingOrderBypassesAllGates(t *testing.T) {
	g := newTestGate()
	snapshot := emptyPortfolio()
	snapshot.Positions["AAA"] = PositionSnapshot{Qty: 10, AvgEntry: 100}
	snapshot.DayPnLPct = -0.10 // would otherwise trip the kill switch

	// Existing long position; a Sell signal is a Close, not a new Open.
	decision := ensemble.Decision{Signal: strategy.Sell, Confidence: 0.0}
	order, rej := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, snapshot, time.Now())
	if rej != nil {
		t.Fatalf("expected close order to bypass gates, got rejection: %v", rej)
	}
	if order.Qty != 10 || order.Side != SideSell {
		t.Fatalf("expected a full-quantity close sell, got %+v", order)
	}
}

func TestSizeHigherConfidenceYieldsLargerQty(t *testing.T) {
	g := newTestGate()
	low := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.5}
	high := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.9}

	orderLow, _ := g.Size("AAA", low, regime.Range, 1.0, 0.5, 100, emptyPortfolio(), time.Now())
	orderHigh, _ := g.Size("AAA", high, regime.Range, 1.0, 0.5, 100, emptyPortfolio(), time.Now())

	if orderHigh.Qty <= orderLow.Qty {
		t.Fatalf("expected higher confidence to size larger: low=%d high=%d", orderLow.Qty, orderHigh.Qty)
	}
}

func TestSizeTrendRegimeSizesLargerThanVolatile(t *testing.T) {
	g := newTestGate()
	decision := ensemble.Decision{Signal: strategy.Buy, Confidence: 0.8}

	trend, _ := g.Size("AAA", decision, regime.TrendUp, 1.0, 0.5, 100, emptyPortfolio(), time.Now())
	volatile, _ := g.Size("AAA", decision, regime.Volatile, 1.0, 0.5, 100, emptyPortfolio(), time.Now())

	if trend.Qty <= volatile.Qty {
		t.Fatalf("expected trend regime to size larger than volatile: trend=%d volatile=%d", trend.Qty, volatile.Qty)
	}
}
