package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const defaultTxAttempts = 3

// ErrRetry may be returned from a WithTx callback to roll back and run the
// callback again in a fresh transaction.
var ErrRetry = errors.New("transaction should be retried")

// Transactor begins transactions. *sql.DB satisfies it.
type Transactor interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
// The transaction is rolled back on any error. Serialization failures,
// deadlocks and ErrRetry are retried up to three attempts.
func WithTx(ctx context.Context, conn Transactor, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= defaultTxAttempts; attempt++ {
		err = runTx(ctx, conn, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", defaultTxAttempts, err)
}

func runTx(ctx context.Context, conn Transactor, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func retryable(err error) bool {
	if errors.Is(err, ErrRetry) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
