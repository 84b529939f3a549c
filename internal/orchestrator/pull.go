package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/registry"
	"github.com/mrlokans/stagesync/internal/transport"
)

// PullRequest describes one platform pull: which data types to fetch
// from the platform and apply to the local aggregate.
type PullRequest struct {
	PlatformID string
	// DataTypes to pull; empty means every enabled pullable data type
	DataTypes []entities.DataType
}

// PullReport summarises one platform pull.
type PullReport struct {
	PlatformID string                       `json:"platform_id"`
	Mode       entities.SyncMode            `json:"mode"`
	Records    []entities.SyncRecord        `json:"records"`
	Payloads   map[entities.DataType]string `json:"payloads,omitempty"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
}

// pullable reports whether a data type flows platform-to-local. Media
// and bookings only travel outward: the platforms are not the source of
// truth for them.
func pullable(dt entities.DataType) bool {
	return dt == entities.DataTypeProfile || dt == entities.DataTypeAvailability
}

// PullOne fetches the requested data types from one platform and applies
// them as the new local state. In fallback mode there is nothing to
// fetch: the local aggregate is authoritative and is returned as-is,
// stamped as a synthetic success.
func (o *Orchestrator) PullOne(ctx context.Context, req PullRequest) (*PullReport, error) {
	caps, err := o.registry.CapabilitiesOf(req.PlatformID)
	if err != nil {
		return nil, err
	}
	if err := o.gateManual(caps, "pull"); err != nil {
		return nil, err
	}

	platform, err := o.platforms.Get(req.PlatformID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform state: %w", err)
	}
	if !platform.Connected {
		return nil, ErrNotConnected
	}

	dataTypes, err := resolvePullTypes(req, caps, platform)
	if err != nil {
		return nil, err
	}
	if len(dataTypes) == 0 {
		return nil, fmt.Errorf("no pullable data types enabled for platform %s", req.PlatformID)
	}

	mode := o.Mode(ctx)

	var cred *entities.DecryptedCredential
	var adapter transport.Adapter
	if mode == entities.SyncModeLive {
		cred, err = o.creds.Get(req.PlatformID)
		if err != nil {
			return nil, err
		}
		if cred == nil {
			return nil, transport.ErrAuthRequired
		}
		adapter, err = o.transports.Get(caps.ConnectionType)
		if err != nil {
			return nil, err
		}
	}

	report := &PullReport{
		PlatformID: req.PlatformID,
		Mode:       mode,
		Payloads:   make(map[entities.DataType]string, len(dataTypes)),
		StartedAt:  time.Now(),
	}
	var scopeErrs []error
	committed := false

	for _, dt := range dataTypes {
		record, payload, scopeErr := o.pullScope(ctx, adapter, cred, platform, dt, mode)
		if record != nil {
			report.Records = append(report.Records, *record)
			if record.Status == entities.SyncStatusSuccess {
				report.Payloads[dt] = payload
				committed = true
			}
		}
		if scopeErr != nil {
			scopeErrs = append(scopeErrs, scopeErr)
		}
	}
	report.FinishedAt = time.Now()

	if committed {
		if err := o.platforms.MarkSynced(req.PlatformID, report.FinishedAt); err != nil {
			log.Printf("Failed to stamp last sync for %s: %v", req.PlatformID, err)
		}
	}

	if len(scopeErrs) > 0 {
		pullErr := classifySyncError(scopeErrs)
		if setErr := o.platforms.SetLastError(req.PlatformID, pullErr.Error()); setErr != nil {
			log.Printf("Failed to store last error for %s: %v", req.PlatformID, setErr)
		}
		return report, pullErr
	}
	return report, nil
}

// pullScope fetches a single data type and replaces the local value with
// it. A fetch failure leaves local state untouched but is still recorded.
func (o *Orchestrator) pullScope(ctx context.Context, adapter transport.Adapter, cred *entities.DecryptedCredential, platform *entities.Platform, dt entities.DataType, mode entities.SyncMode) (*entities.SyncRecord, string, error) {
	start := time.Now()

	record := &entities.SyncRecord{
		SyncID:     uuid.NewString(),
		PlatformID: platform.ID,
		Operation:  entities.PullOperationFor(dt),
		Mode:       mode,
	}

	if mode == entities.SyncModeFallback {
		// Snapshot-and-commit without applying anything: this only reads
		// the scope under its lock.
		snap, err := o.state.Begin(string(dt))
		if err != nil {
			return nil, "", err
		}
		local := snap.Prior()
		if err := snap.Commit(); err != nil {
			return nil, "", err
		}
		record.Status = entities.SyncStatusSuccess
		record.ItemsTotal = countItems(local)
		record.ItemsProcessed = record.ItemsTotal
		record.Metadata = `{"synthetic":true}`
		record.DurationMs = time.Since(start).Milliseconds()
		o.appendRecord(record)
		return record, local, nil
	}

	payload, pullErr := adapter.Pull(ctx, platform.ID, dt, cred)
	if pullErr != nil {
		record.Status = entities.SyncStatusFailed
		record.Error = pullErr.Error()
		record.DurationMs = time.Since(start).Milliseconds()
		o.appendRecord(record)
		return record, "", pullErr
	}

	snap, err := o.state.Begin(string(dt))
	if err != nil {
		return nil, "", err
	}
	if err := snap.Apply(payload); err != nil {
		if rbErr := snap.Rollback(); rbErr != nil {
			log.Printf("Failed to release scope %s: %v", dt, rbErr)
		}
		return nil, "", err
	}
	if err := snap.Commit(); err != nil {
		return nil, "", err
	}

	record.Status = entities.SyncStatusSuccess
	record.ItemsTotal = countItems(payload)
	record.ItemsProcessed = record.ItemsTotal
	record.DurationMs = time.Since(start).Milliseconds()
	o.appendRecord(record)
	return record, payload, nil
}

func resolvePullTypes(req PullRequest, caps registry.Capabilities, platform *entities.Platform) ([]entities.DataType, error) {
	seen := make(map[entities.DataType]bool)
	var out []entities.DataType
	for _, dt := range req.DataTypes {
		if seen[dt] {
			continue
		}
		seen[dt] = true
		if !caps.Supports(dt) {
			return nil, &CapabilityError{
				PlatformID: caps.ID,
				Operation:  "pull",
				Reason:     fmt.Sprintf("data type %q is not supported", dt),
			}
		}
		if !pullable(dt) {
			return nil, &CapabilityError{
				PlatformID: caps.ID,
				Operation:  "pull",
				Reason:     fmt.Sprintf("data type %q cannot be pulled", dt),
			}
		}
		out = append(out, dt)
	}

	if len(out) == 0 {
		for _, dt := range caps.SupportedDataTypes {
			if pullable(dt) && platform.SyncEnabled(dt) {
				out = append(out, dt)
			}
		}
	}
	return out, nil
}
