// Package storage - postgres.go is the Postgres-backed Repository, used in
// production against the six tables: decisions, fills, rejections,
// regime_history, snapshots, learning_state.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ronaldmcdonaldeats/algo-trading-bot-sub003/internal/engineerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// retryDelays is the bounded backoff schedule applied to the immediate-write
// paths (fills, rejections, regime changes): a first attempt plus three
// retries (4 attempts in all), waiting 100ms, 300ms, then 900ms before each
// retry. A failure that survives every attempt is reported to the caller as a PersistenceError for the
// engine to act on — fills are fatal, the others are not.
var retryDelays = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 900 * time.Millisecond}

// PostgresStore implements Repository against Postgres via pgx's connection
// pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connStr and returns a ready Repository. The
// caller owns the returned pool's lifetime — call Close when done.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	if connStr == "" {
		return nil, fmt.Errorf("postgres store: connection string is required")
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

// withRetry runs op up to len(retryDelays)+1 times. A failure that survives
// every attempt is wrapped in fatalErr — callers on the fill-row path pass
// engineerr.ErrPersistenceFatal (halts the engine); the other immediate-write
// paths pass engineerr.ErrPersistenceTransient (logged, tick continues).
func withRetry(ctx context.Context, fatalErr error, op func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: after %d attempts: %v", fatalErr, len(retryDelays)+1, lastErr)
}

func (ps *PostgresStore) LogDecision(ctx context.Context, rec DecisionRecord) error {
	const q = `INSERT INTO decisions (ts, symbol, action, confidence, weights_json, regime)
	           VALUES ($1, $2, $3, $4, $5, $6)`
	return withRetry(ctx, engineerr.ErrPersistenceTransient, func(ctx context.Context) error {
		_, err := ps.pool.Exec(ctx, q, rec.TS, rec.Symbol, rec.Action, rec.Confidence, rec.WeightsJSON, rec.Regime)
		return err
	})
}

// LogFill is on the immediate-write, fatal-on-persistent-failure path: the
// engine halts if this returns an error once retries are exhausted.
func (ps *PostgresStore) LogFill(ctx context.Context, rec FillRecord) error {
	const q = `INSERT INTO fills (ts, symbol, side, qty, price, fee, slippage)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)`
	return withRetry(ctx, engineerr.ErrPersistenceFatal, func(ctx context.Context) error {
		_, err := ps.pool.Exec(ctx, q, rec.TS, rec.Symbol, rec.Side, rec.Qty, rec.Price, rec.Fee, rec.Slippage)
		return err
	})
}

func (ps *PostgresStore) LogRejection(ctx context.Context, rec RejectionRecord) error {
	const q = `INSERT INTO rejections (ts, symbol, reason) VALUES ($1, $2, $3)`
	return withRetry(ctx, engineerr.ErrPersistenceTransient, func(ctx context.Context) error {
		_, err := ps.pool.Exec(ctx, q, rec.TS, rec.Symbol, rec.Reason)
		return err
	})
}

func (ps *PostgresStore) LogRegimeChange(ctx context.Context, rec RegimeHistoryRecord) error {
	const q = `INSERT INTO regime_history (ts, regime, confidence) VALUES ($1, $2, $3)`
	return withRetry(ctx, engineerr.ErrPersistenceTransient, func(ctx context.Context) error {
		_, err := ps.pool.Exec(ctx, q, rec.TS, rec.Regime, rec.Confidence)
		return err
	})
}

// SaveSnapshot is batched by the engine (default cadence every K ticks), so
// it is not on the bounded-retry path — a failure here is logged and
// retried on the next cadence rather than retried inline.
func (ps *PostgresStore) SaveSnapshot(ctx context.Context, rec SnapshotRecord) error {
	const q = `INSERT INTO snapshots (ts, cash, equity, positions_json) VALUES ($1, $2, $3, $4)`
	_, err := ps.pool.Exec(ctx, q, rec.TS, rec.Cash, rec.Equity, rec.PositionsJSON)
	return err
}

func (ps *PostgresStore) SaveLearningState(ctx context.Context, rec LearningStateRecord) error {
	const q = `INSERT INTO learning_state (ts, weights_json, update_count) VALUES ($1, $2, $3)`
	_, err := ps.pool.Exec(ctx, q, rec.TS, rec.WeightsJSON, rec.UpdateCount)
	return err
}

func (ps *PostgresStore) LatestLearningState(ctx context.Context) (map[string]float64, int, error) {
	const q = `SELECT weights_json, update_count FROM learning_state ORDER BY ts DESC LIMIT 1`
	row := ps.pool.QueryRow(ctx, q)

	var weightsJSON string
	var updateCount int
	if err := row.Scan(&weightsJSON, &updateCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	weights, err := decodeWeights(weightsJSON)
	if err != nil {
		return nil, 0, err
	}
	return weights, updateCount, nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}
