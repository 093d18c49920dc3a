package store

import (
	"context"
	"fmt"
	"time"
)

// ClaimReminder inserts the (task, minute) fire marker. The primary key
// makes a second claim for the same pair a no-op.
func (s *SQLiteStore) ClaimReminder(
	ctx context.Context,
	taskID string,
	minute time.Time,
) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO reminder_fires (task_id, minute, fired_at)
		VALUES (?, ?, ?)`,
		taskID, unixMinute(minute), dbTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("claiming reminder for task %s: %w", taskID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
