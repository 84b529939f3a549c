package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/orchestrator"
)

// BulkSyncer runs a fan-out sync across platforms.
type BulkSyncer interface {
	SyncMany(ctx context.Context, platformIDs []string, dataTypes []entities.DataType) (*orchestrator.BulkResult, error)
}

// BulkSyncTask pushes the local aggregate to the listed platforms in the
// background. Empty PlatformIDs means every connected platform.
type BulkSyncTask struct {
	PlatformIDs []string `json:"platform_ids"`
	DataTypes   []string `json:"data_types"`
}

// Config returns the queue configuration for bulk sync tasks.
func (t BulkSyncTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "bulk_sync",
		MaxAttempts: 1, // Sync attempts are recorded in history; retries are explicit
		Backoff:     time.Minute,
		Timeout:     15 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// BulkSyncProcessor creates a processor function for BulkSyncTask.
func BulkSyncProcessor(syncer BulkSyncer) backlite.QueueProcessor[BulkSyncTask] {
	return func(ctx context.Context, task BulkSyncTask) error {
		if syncer == nil {
			return fmt.Errorf("bulk syncer not configured")
		}

		dataTypes := make([]entities.DataType, 0, len(task.DataTypes))
		for _, dt := range task.DataTypes {
			dataTypes = append(dataTypes, entities.DataType(dt))
		}

		result, err := syncer.SyncMany(ctx, task.PlatformIDs, dataTypes)
		if err != nil {
			return fmt.Errorf("bulk sync: %w", err)
		}

		log.Printf("[TASK] Bulk sync finished: %d succeeded, %d partial, %d failed",
			len(result.Succeeded), len(result.Partial), len(result.Failed))
		return nil
	}
}

// NewBulkSyncQueue creates a backlite queue for bulk sync tasks.
func NewBulkSyncQueue(syncer BulkSyncer) backlite.Queue {
	return backlite.NewQueue(BulkSyncProcessor(syncer))
}
