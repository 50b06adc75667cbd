// Package engineerr defines the error taxonomy shared across the engine.
//
// Kinds are sentinel errors, discriminated with errors.Is/errors.As, not
// distinct exported types per call site. Component packages wrap these with
// fmt.Errorf("...: %w", ...) to attach symbol/strategy/reason context.
package engineerr

import "errors"

var (
	// ErrConfig marks a fatal configuration problem. No recovery; caller exits.
	ErrConfig = errors.New("config error")

	// ErrDataUnavailable marks a symbol that could not be fetched this tick.
	// Recovered by skipping the symbol for the tick.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrExecutionTimeout marks a strategy task that exceeded its per-task
	// timeout. Recovered by coercing the result to Hold/0.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrRejection marks a normal RiskGate/Broker rejection. Not a crash.
	ErrRejection = errors.New("rejection")

	// ErrInsufficientData marks a symbol with too few bars to classify or
	// evaluate. Recovered by skipping, logged once per symbol per session.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrPersistenceTransient marks a retryable persistence failure.
	ErrPersistenceTransient = errors.New("persistence error (transient)")

	// ErrPersistenceFatal marks a persistence failure that exhausted its
	// retry budget on a fill row. The engine halts.
	ErrPersistenceFatal = errors.New("persistence error (fatal)")

	// ErrBrokerFatal marks an unrecoverable broker failure. The engine halts.
	ErrBrokerFatal = errors.New("broker fatal error")
)

// IsPersistenceFatal reports whether err (or anything it wraps) is the
// fatal persistence kind — the fill-row write that exhausted its retry
// budget, which the engine treats as a reason to halt.
func IsPersistenceFatal(err error) bool {
	return errors.Is(err, ErrPersistenceFatal)
}

// ExitCode maps a fatal error to the process exit code documented in the
// engine's external CLI surface: 0 normal, 1 config error, 2 fatal broker
// error, 3 data subsystem error exceeding retry budget.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfig):
		return 1
	case errors.Is(err, ErrBrokerFatal), errors.Is(err, ErrPersistenceFatal):
		return 2
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, ErrInsufficientData):
		return 3
	default:
		return 1
	}
}
