package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult contains statistics about a cleanup operation.
type CleanupResult struct {
	RunsDeleted    int64
	SamplesDeleted int64
	Duration       time.Duration
}

// Cleanup deletes runs started more than retentionDays ago together with
// their samples, then runs VACUUM. A retention of 0 keeps everything.
//
//	result, err := database.Cleanup(ctx, cfg.RunDBRetentionDays)
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if retentionDays == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return result, ErrClosed
	}

	cutoff := fmt.Sprintf("-%d days", retentionDays)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM samples
		WHERE run_id IN (SELECT id FROM runs WHERE started_at < datetime('now', ?))`, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete samples: %w", err)
	}
	if result.SamplesDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for samples: %w", err)
	}

	res, err = tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < datetime('now', ?)", cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to delete runs: %w", err)
	}
	if result.RunsDeleted, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected for runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if result.RunsDeleted > 0 {
		// VACUUM cannot run inside a transaction.
		if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}
