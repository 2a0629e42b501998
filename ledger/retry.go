/*
retry.go - Bounded retry for transactional operations

PURPOSE:
  Every engine operation reads current aggregate state and writes a new
  aggregate state inside one store transaction. Under contention the
  store reports a conflict; the whole operation (read, validate, write)
  is re-run from scratch so the validation sees fresh state.

DISCIPLINE:
  - Retries are bounded (default 3 attempts)
  - Only conflict errors are retried; validation errors surface immediately
  - A persistent conflict surfaces as ErrConcurrencyConflict rather than
    silently succeeding with stale data

SEE ALSO:
  - errors.go: IsRetryable
  - store/sqlite: maps SQLITE_BUSY to ErrConcurrencyConflict
*/
package ledger

import (
	"context"
	"time"
)

// DefaultRetryAttempts bounds how many times a conflicting transaction
// is re-run before ErrConcurrencyConflict is returned to the caller.
const DefaultRetryAttempts = 3

// Retry runs fn up to attempts times, re-running only on retryable
// (conflict) errors. Between attempts it backs off briefly, respecting
// context cancellation. Any non-retryable error is returned as-is.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !IsRetryable(err) {
			return err
		}

		// Brief backoff before the next attempt; the operations are
		// single-round-trip so contention windows are short.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 5 * time.Millisecond):
		}
	}
	return ErrConcurrencyConflict
}
