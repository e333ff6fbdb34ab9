package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the engine reacts to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeInvalidTextRepr      = "22P02"
)

// TxFunc is executed inside a transaction. The executor is only valid for the call.
type TxFunc func(ctx context.Context, exec sqlx.ExtContext) error

// TxRunner executes read-validate-write units under serializable isolation.
type TxRunner struct {
	db          *sqlx.DB
	isolation   sql.IsolationLevel
	maxAttempts int
	backoff     time.Duration
	onRetry     func(attempt int, err error)
}

// TxOption customises a TxRunner.
type TxOption func(*TxRunner)

// WithMaxAttempts bounds how many times a serialization failure is retried.
func WithMaxAttempts(n int) TxOption {
	return func(r *TxRunner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; it grows linearly per attempt.
func WithBackoff(d time.Duration) TxOption {
	return func(r *TxRunner) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithIsolation overrides the isolation level.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(r *TxRunner) {
		r.isolation = level
	}
}

// WithRetryHook registers a callback invoked before each retry.
func WithRetryHook(fn func(attempt int, err error)) TxOption {
	return func(r *TxRunner) {
		r.onRetry = fn
	}
}

// NewTxRunner constructs a runner defaulting to serializable isolation and 3 attempts.
func NewTxRunner(db *sqlx.DB, opts ...TxOption) *TxRunner {
	r := &TxRunner{
		db:          db,
		isolation:   sql.LevelSerializable,
		maxAttempts: 3,
		backoff:     25 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithinTx runs fn in a transaction, committing on success and rolling back on error or panic.
// Serialization failures and deadlocks are retried with a fresh transaction.
func (r *TxRunner) WithinTx(ctx context.Context, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt == r.maxAttempts {
			return err
		}
		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}
		if r.backoff > 0 {
			timer := time.NewTimer(time.Duration(attempt) * r.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry transaction: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn TxFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: r.isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a transient concurrency failure.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == codeSerializationFailure || string(pqErr.Code) == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation, returning the constraint name.
func IsUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == codeUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// IsInvalidInput reports whether postgres rejected a parameter that does not parse as its column type,
// such as a malformed uuid.
func IsInvalidInput(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == codeInvalidTextRepr
}
