package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// HistoryPruner deletes sync records past the retention horizon.
type HistoryPruner interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// AuditPruner deletes audit events past the retention horizon.
type AuditPruner interface {
	DeleteOldEvents(olderThan time.Time) (int64, error)
}

// CleanupHistoryTask prunes sync history and audit events older than the
// configured retention period. History rows are immutable while retained;
// pruning whole age bands is the only deletion that ever touches them.
type CleanupHistoryTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for history cleanup tasks.
func (t CleanupHistoryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_history",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupHistoryProcessor creates a processor function for CleanupHistoryTask.
func CleanupHistoryProcessor(historyPruner HistoryPruner, auditPruner AuditPruner) backlite.QueueProcessor[CleanupHistoryTask] {
	return func(ctx context.Context, task CleanupHistoryTask) error {
		if historyPruner == nil {
			return fmt.Errorf("history pruner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 90
		}
		cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

		deleted, err := historyPruner.DeleteOlderThan(cutoff)
		if err != nil {
			return fmt.Errorf("cleanup sync history: %w", err)
		}

		var auditDeleted int64
		if auditPruner != nil {
			auditDeleted, err = auditPruner.DeleteOldEvents(cutoff)
			if err != nil {
				return fmt.Errorf("cleanup audit events: %w", err)
			}
		}

		log.Printf("[TASK] Cleaned up %d sync records and %d audit events older than %d days",
			deleted, auditDeleted, retentionDays)
		return nil
	}
}

// NewCleanupHistoryQueue creates a backlite queue for history cleanup tasks.
func NewCleanupHistoryQueue(historyPruner HistoryPruner, auditPruner AuditPruner) backlite.Queue {
	return backlite.NewQueue(CleanupHistoryProcessor(historyPruner, auditPruner))
}
