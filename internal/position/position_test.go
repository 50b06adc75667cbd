package position

import (
	"testing"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/broker"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/config"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/risk"
	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/strategy"
	"github.com/shopspring/decimal"
)

func testSizing() config.SizingConfig {
	return config.SizingConfig{
		StopPct:     0.02,
		TPLadder:    []config.TPLevel{{Pct: 0.015, Frac: 0.5}, {Pct: 0.03, Frac: 0.25}, {Pct: 0.05, Frac: 0.25}},
		TMaxBars:    20,
		TimeExitRet: 0.01,
	}
}

func buyCandidate(qty int) *risk.Order {
	return &risk.Order{Symbol: "AAA", Side: risk.SideBuy, Qty: qty, Kind: risk.MarketOrder}
}

func TestOnTickRequiresTwoConsecutiveConfirmations(t *testing.T) {
	m := NewManager(testSizing())

	order := m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	if order != nil {
		t.Fatal("expected no order on first Buy signal")
	}
	if m.StateOf("AAA") != Flat {
		t.Fatal("expected to remain Flat after one signal")
	}

	order = m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	if order == nil {
		t.Fatal("expected an Open order after two consecutive Buy signals")
	}
	if m.StateOf("AAA") != Opening {
		t.Fatalf("expected Opening, got %s", m.StateOf("AAA"))
	}
}

func TestOnTickResetsConfirmationOnOpposingSignal(t *testing.T) {
	m := NewManager(testSizing())

	m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	m.OnTick("AAA", strategy.Sell, nil, 100)
	order := m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	if order != nil {
		t.Fatal("expected confirmation counter reset by an opposing signal")
	}
}

func TestOnTickResetsConfirmationOnHold(t *testing.T) {
	m := NewManager(testSizing())

	m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	m.OnTick("AAA", strategy.Hold, nil, 100)
	order := m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	if order != nil {
		t.Fatal("expected confirmation counter reset by a Hold signal")
	}
}

func TestOnTickRiskRejectionDoesNotResetConfirmation(t *testing.T) {
	m := NewManager(testSizing())

	// First tick confirms Buy. Second tick the ensemble still votes Buy but
	// the RiskGate withholds a candidate (e.g. a transient rejection) —
	// not an opposing or Hold signal, so the counter must keep counting
	// rather than restart from zero.
	m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	order := m.OnTick("AAA", strategy.Buy, nil, 100)
	if order != nil {
		t.Fatal("expected no order while the RiskGate withholds a candidate")
	}

	order = m.OnTick("AAA", strategy.Buy, buyCandidate(10), 100)
	if order == nil {
		t.Fatal("expected the Open to fire once the RiskGate approves again, without needing two fresh confirmations")
	}
}

func openPosition(t *testing.T, m *Manager, symbol string, qty int, entry float64) {
	t.Helper()
	m.OnTick(symbol, strategy.Buy, &risk.Order{Symbol: symbol, Side: risk.SideBuy, Qty: qty, Kind: risk.MarketOrder}, entry)
	order := m.OnTick(symbol, strategy.Buy, &risk.Order{Symbol: symbol, Side: risk.SideBuy, Qty: qty, Kind: risk.MarketOrder}, entry)
	if order == nil {
		t.Fatal("expected confirmed Open order")
	}
	m.ApplyFill(symbol, broker.Fill{Symbol: symbol, Side: broker.SideBuy, Qty: qty, Price: decimal.NewFromFloat(entry)}, time.Now())
	if m.StateOf(symbol) != Open {
		t.Fatalf("expected Open after fill, got %s", m.StateOf(symbol))
	}
}

func TestApplyFillTransitionsOpeningToOpen(t *testing.T) {
	m := NewManager(testSizing())
	openPosition(t, m, "AAA", 10, 100)
}

func TestExitLadderFiresFirstTPLevel(t *testing.T) {
	m := NewManager(testSizing())
	openPosition(t, m, "AAA", 100, 100)

	order := m.OnTick("AAA", strategy.Hold, nil, 101.5) // +1.5% hits first TP
	if order == nil {
		t.Fatal("expected a take-profit close order")
	}
	if order.Qty != 50 {
		t.Fatalf("expected 50%% of 100 shares closed, got %d", order.Qty)
	}
	if order.Side != broker.SideSell {
		t.Fatalf("expected a sell to close a long, got %s", order.Side)
	}
}

func TestExitLadderTPLevelFiresOnlyOnce(t *testing.T) {
	m := NewManager(testSizing())
	openPosition(t, m, "AAA", 100, 100)

	m.OnTick("AAA", strategy.Hold, nil, 101.5)
	m.ApplyFill("AAA", broker.Fill{Symbol: "AAA", Side: broker.SideSell, Qty: 50}, time.Now())

	order := m.OnTick("AAA", strategy.Hold, nil, 101.6)
	if order != nil {
		t.Fatal("expected the first TP level not to refire")
	}
}

func TestExitStopLossClosesFullRemainder(t *testing.T) {
	m := NewManager(testSizing())
	openPosition(t, m, "AAA", 100, 100)

	order := m.OnTick("AAA", strategy.Hold, nil, 97) // below 100*(1-0.02)=98
	if order == nil {
		t.Fatal("expected stop-loss close order")
	}
	if order.Qty != 100 {
		t.Fatalf("expected full remainder closed, got %d", order.Qty)
	}
}

func TestExitTimeBasedExit(t *testing.T) {
	sizing := testSizing()
	sizing.TMaxBars = 2
	m := NewManager(sizing)
	openPosition(t, m, "AAA", 100, 100)

	for i := 0; i < 2; i++ {
		order := m.OnTick("AAA", strategy.Hold, nil, 100.2) // +0.2% < time_exit_ret
		if order != nil {
			t.Fatalf("expected no exit before bars_held exceeds T_max, tick %d", i)
		}
	}
	order := m.OnTick("AAA", strategy.Hold, nil, 100.2)
	if order == nil {
		t.Fatal("expected time-based exit once bars_held exceeds T_max with weak return")
	}
}

func TestApplyFillOnClosingReturnsToFlatWhenFullyClosed(t *testing.T) {
	m := NewManager(testSizing())
	openPosition(t, m, "AAA", 100, 100)

	m.OnTick("AAA", strategy.Hold, nil, 97) // triggers full stop-loss close
	m.ApplyFill("AAA", broker.Fill{Symbol: "AAA", Side: broker.SideSell, Qty: 100}, time.Now())

	if m.StateOf("AAA") != Flat {
		t.Fatalf("expected Flat after full close fill, got %s", m.StateOf("AAA"))
	}
}
