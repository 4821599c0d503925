package okr

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/saulo-duarte/okr-progress/internal/apperror"
	"github.com/saulo-duarte/okr-progress/internal/config"
)

// Postgres SQLSTATE codes treated as transient conflicts.
var transientPgCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// classify turns transient store failures into ConcurrencyError and leaves
// every other error untouched.
func classify(op string, err error) error {
	if err == nil || apperror.IsConcurrency(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && transientPgCodes[pgErr.Code] {
		return apperror.Concurrency(op, err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && (liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked) {
		return apperror.Concurrency(op, err)
	}
	return err
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or
// maxAttempts is reached.
func withRetry(ctx context.Context, op string, maxAttempts int, backoff time.Duration, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperror.IsConcurrency(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		config.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
		}).Warn("Concurrent modification detected, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return err
}
