// Package scheduler runs the periodic bulk sync of all connected
// platforms on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/stagesync/internal/database/audit"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/orchestrator"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks that a schedule expression parses.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// Config controls the scheduled bulk sync.
type Config struct {
	Enabled  bool
	Schedule string
}

// SyncScheduler manages the periodic bulk sync job.
type SyncScheduler struct {
	cfg      Config
	orch     *orchestrator.Orchestrator
	auditLog *audit.Repository

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewSyncScheduler creates a new scheduler instance.
func NewSyncScheduler(cfg Config, orch *orchestrator.Orchestrator, auditLog *audit.Repository) *SyncScheduler {
	return &SyncScheduler{
		cfg:      cfg,
		orch:     orch,
		auditLog: auditLog,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start begins the scheduler if scheduled syncing is enabled.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Enabled {
		log.Printf("Sync scheduler: disabled")
		return nil
	}

	if err := ValidateCronSchedule(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.runSync(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Sync scheduler: started with schedule '%s'. Next run: %v",
		s.cfg.Schedule, s.nextRunLocked())

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sync to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Sync scheduler: stopped")
}

// RunNow triggers an immediate bulk sync.
func (s *SyncScheduler) RunNow() error {
	go s.runSync(context.Background())
	return nil
}

// IsRunning returns whether the scheduler is active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next scheduled sync will occur.
func (s *SyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	return s.nextRunLocked()
}

func (s *SyncScheduler) nextRunLocked() *time.Time {
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// runSync performs the scheduled bulk sync across all connected platforms.
func (s *SyncScheduler) runSync(ctx context.Context) {
	log.Printf("Scheduled sync: starting")
	startTime := time.Now()

	result, err := s.orch.SyncMany(ctx, nil, nil)
	if err != nil {
		errMsg := fmt.Sprintf("Scheduled sync failed to start: %v", err)
		log.Printf("%s", errMsg)
		s.logAudit("scheduled_sync", errMsg, err)
		return
	}

	duration := time.Since(startTime)
	summary := fmt.Sprintf("Scheduled sync: %d succeeded, %d partial, %d failed in %v",
		len(result.Succeeded), len(result.Partial), len(result.Failed), duration.Round(time.Millisecond))
	log.Printf("%s", summary)
	s.logAudit("scheduled_sync", summary, nil)
}

func (s *SyncScheduler) logAudit(action, description string, err error) {
	if s.auditLog == nil {
		return
	}
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventScheduler,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = err.Error()
	}
	if logErr := s.auditLog.LogEvent(event); logErr != nil {
		log.Printf("Failed to record scheduler audit event: %v", logErr)
	}
}
