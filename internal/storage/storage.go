// Package storage implements the Repository (C11): an append-only durable
// log keyed by timestamp and event kind.
//
// Writes are immediate for fills, rejections, and regime changes (durable
// enough to survive a crash between ticks); snapshot and learning-state
// writes are the engine's responsibility to cadence (every K ticks by
// default) — the Repository itself just exposes the write. The core never
// reads history except to bootstrap ensemble weights on startup; read
// queries otherwise belong to an external CLI operating on the same
// schema.
package storage

import (
	"context"
	"time"
)

// DecisionRecord is one row of the decisions table.
type DecisionRecord struct {
	TS          time.Time
	Symbol      string
	Action      string // the ensemble's Signal: buy/sell/hold
	Confidence  float64
	WeightsJSON string
	Regime      string
}

// FillRecord is one row of the fills table.
type FillRecord struct {
	TS       time.Time
	Symbol   string
	Side     string
	Qty      int
	Price    float64
	Fee      float64
	Slippage float64
}

// RejectionRecord is one row of the rejections table.
type RejectionRecord struct {
	TS     time.Time
	Symbol string
	Reason string
}

// RegimeHistoryRecord is one row of the regime_history table, written
// only when the classified regime changes from the previous tick.
type RegimeHistoryRecord struct {
	TS         time.Time
	Regime     string
	Confidence float64
}

// SnapshotRecord is one row of the snapshots table.
type SnapshotRecord struct {
	TS            time.Time
	Cash          float64
	Equity        float64
	PositionsJSON string
}

// LearningStateRecord is one row of the learning_state table, used to
// bootstrap the Ensemble's weights on startup.
type LearningStateRecord struct {
	TS          time.Time
	WeightsJSON string
	UpdateCount int
}

// Repository is the durable log the engine writes to every tick.
type Repository interface {
	LogDecision(ctx context.Context, rec DecisionRecord) error
	LogFill(ctx context.Context, rec FillRecord) error
	LogRejection(ctx context.Context, rec RejectionRecord) error
	LogRegimeChange(ctx context.Context, rec RegimeHistoryRecord) error
	SaveSnapshot(ctx context.Context, rec SnapshotRecord) error
	SaveLearningState(ctx context.Context, rec LearningStateRecord) error

	// LatestLearningState bootstraps the Ensemble on startup. Returns
	// (nil, 0, nil) if no learning_state row has ever been written.
	LatestLearningState(ctx context.Context) (weights map[string]float64, updateCount int, err error)

	Ping(ctx context.Context) error
}
