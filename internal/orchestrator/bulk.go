package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

// BulkResult aggregates a fan-out sync across platforms.
type BulkResult struct {
	Succeeded []string          `json:"succeeded"`
	Partial   []string          `json:"partial"`
	Failed    map[string]string `json:"failed"`

	StartedAt time.Time `json:"started_at"`
	// FinishedAt is the completion time of the slowest platform; the
	// batch resolves only after every attempt has resolved.
	FinishedAt time.Time `json:"finished_at"`
}

// SyncMany pushes to every listed platform concurrently, one goroutine
// per platform. Attempts are independent: a failing platform never stops
// the others, and the result reports every outcome. An empty platform
// list means all connected platforms.
func (o *Orchestrator) SyncMany(ctx context.Context, platformIDs []string, dataTypes []entities.DataType) (*BulkResult, error) {
	if len(platformIDs) == 0 {
		all, err := o.platforms.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list platforms: %w", err)
		}
		for _, p := range all {
			if p.Connected {
				platformIDs = append(platformIDs, p.ID)
			}
		}
	}

	bulk := &BulkResult{
		Failed:    make(map[string]string),
		StartedAt: time.Now(),
	}
	if len(platformIDs) == 0 {
		bulk.FinishedAt = bulk.StartedAt
		return bulk, nil
	}

	type outcome struct {
		platformID string
		report     *SyncReport
		err        error
		finishedAt time.Time
	}

	results := make(chan outcome, len(platformIDs))
	var wg sync.WaitGroup
	for _, id := range platformIDs {
		wg.Add(1)
		go func(platformID string) {
			defer wg.Done()
			report, err := o.SyncOne(ctx, SyncRequest{PlatformID: platformID, DataTypes: dataTypes})
			results <- outcome{platformID: platformID, report: report, err: err, finishedAt: time.Now()}
		}(id)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.finishedAt.After(bulk.FinishedAt) {
			bulk.FinishedAt = res.finishedAt
		}
		switch {
		case res.err == nil && res.report != nil && res.report.hasPartial():
			bulk.Partial = append(bulk.Partial, res.platformID)
		case res.err == nil:
			bulk.Succeeded = append(bulk.Succeeded, res.platformID)
		case res.report != nil && res.report.hasCommittedWork():
			// Some data types landed, others did not
			bulk.Partial = append(bulk.Partial, res.platformID)
		default:
			bulk.Failed[res.platformID] = res.err.Error()
		}
	}
	sort.Strings(bulk.Succeeded)
	sort.Strings(bulk.Partial)

	o.auditEvent(&entities.AuditEvent{
		EventType: entities.AuditEventSync,
		Action:    "bulk_sync",
		Description: fmt.Sprintf("bulk sync across %d platform(s): %d succeeded, %d partial, %d failed",
			len(platformIDs), len(bulk.Succeeded), len(bulk.Partial), len(bulk.Failed)),
		Status: bulkAuditStatus(bulk),
	})
	return bulk, nil
}

func bulkAuditStatus(bulk *BulkResult) entities.AuditStatus {
	if len(bulk.Failed) > 0 && len(bulk.Succeeded) == 0 && len(bulk.Partial) == 0 {
		return entities.AuditStatusFailed
	}
	return entities.AuditStatusSuccess
}
