package db

import (
	"context"
	"fmt"
)

// Advisory lock IDs for background jobs. Each job holds its lock for the
// duration of a run so multiple instances never overlap.
const (
	LockAlertMatcher int64 = 52001
	LockAlertDigest  int64 = 52002
	LockReportSweep  int64 = 52003
	LockTokenCleanup int64 = 52004
)

func (db *DB) TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	var acquired bool

	err := db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("try acquire advisory lock: %w", err)
	}

	return acquired, nil
}

func (db *DB) ReleaseAdvisoryLock(ctx context.Context, lockID int64) error {
	if _, err := db.Pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}

	return nil
}
