// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// IsSQLiteBusyError checks if the error is a SQLITE_BUSY error.
func IsSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "SQLITE_BUSY")
}

// IsSQLiteLockedError checks if the error is a "database is locked" error.
func IsSQLiteLockedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "database is locked")
}

// IsSQLiteConflictError checks if the error is either a SQLITE_BUSY
// or "database is locked" error.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	return IsSQLiteBusyError(err) || IsSQLiteLockedError(err)
}

// IsSQLiteUniqueError checks if the error is a UNIQUE constraint violation.
func IsSQLiteUniqueError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RetryPolicy bounds RetryOnConflict.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy is three attempts starting at 50ms.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: 50 * time.Millisecond}

// RetryOnConflict runs op, retrying with exponential backoff while it fails
// with a SQLite busy/locked error. Other errors are returned immediately.
func RetryOnConflict(ctx context.Context, policy RetryPolicy, name string, op func() error) error {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}

	var err error
	for i := 0; i < policy.MaxRetries; i++ {
		err = op()
		if err == nil || !IsSQLiteConflictError(err) {
			return err
		}
		if i == policy.MaxRetries-1 {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
