// Package orchestrator coordinates every platform-facing operation:
// connecting, disconnecting, testing and syncing. It is the only place
// where capability checks, optimistic state, transports, credentials and
// history come together.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/stagesync/internal/credstore"
	"github.com/mrlokans/stagesync/internal/database/audit"
	"github.com/mrlokans/stagesync/internal/database/history"
	"github.com/mrlokans/stagesync/internal/database/platforms"
	"github.com/mrlokans/stagesync/internal/entities"
	"github.com/mrlokans/stagesync/internal/registry"
	"github.com/mrlokans/stagesync/internal/state"
	"github.com/mrlokans/stagesync/internal/transport"
)

// Config holds orchestrator-wide settings.
type Config struct {
	// ProbeURL is the health endpoint of the backing sync service. An
	// empty URL skips probing and the session runs live.
	ProbeURL string

	// ProbeTimeout bounds the reachability probe. A service that answers
	// within it counts as live, however slowly.
	ProbeTimeout time.Duration
}

// Options collects the orchestrator's collaborators.
type Options struct {
	Config      Config
	Registry    *registry.Registry
	Platforms   *platforms.Repository
	History     *history.Repository
	Credentials *credstore.Store
	State       *state.Manager
	Transports  *transport.Registry
	Audit       *audit.Repository
}

// Orchestrator drives all platform sync operations.
type Orchestrator struct {
	cfg        Config
	registry   *registry.Registry
	platforms  *platforms.Repository
	history    *history.Repository
	creds      *credstore.Store
	state      *state.Manager
	transports *transport.Registry
	audit      *audit.Repository

	modeOnce sync.Once
	mode     entities.SyncMode
}

// New creates a sync orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:        opts.Config,
		registry:   opts.Registry,
		platforms:  opts.Platforms,
		history:    opts.History,
		creds:      opts.Credentials,
		state:      opts.State,
		transports: opts.Transports,
		audit:      opts.Audit,
	}
}

// Mode reports whether this session runs live or in fallback. The
// decision is made once, on the first operation that needs it, and never
// revisited: a service that degrades mid-session does not flip the mode.
func (o *Orchestrator) Mode(ctx context.Context) entities.SyncMode {
	o.modeOnce.Do(func() {
		o.mode = entities.SyncModeLive
		if o.cfg.ProbeURL == "" {
			return
		}
		if !transport.Probe(ctx, o.cfg.ProbeURL, o.cfg.ProbeTimeout) {
			o.mode = entities.SyncModeFallback
			log.Printf("Backing service at %s unreachable, running this session in fallback mode", o.cfg.ProbeURL)
		}
	})
	return o.mode
}

func (o *Orchestrator) gateManual(caps registry.Capabilities, operation string) error {
	if caps.ConnectionType != entities.ConnectionTypeManual {
		return nil
	}
	return &CapabilityError{
		PlatformID: caps.ID,
		Operation:  operation,
		Reason:     "manual platforms are coordination-only",
	}
}

// Connect establishes a platform connection. The connected flag is
// applied optimistically before the handshake, so reads during the
// attempt already see the intent; a failed handshake (live mode) rolls
// it back. The credential is stored encrypted, and all supported data
// types are enabled unless settings already exist.
func (o *Orchestrator) Connect(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error {
	caps, err := o.registry.CapabilitiesOf(platformID)
	if err != nil {
		return err
	}
	if err := o.gateManual(caps, "connect"); err != nil {
		return err
	}

	start := time.Now()
	mode := o.Mode(ctx)
	cred.PlatformID = platformID

	platform, err := o.platforms.Get(platformID)
	if err != nil {
		return fmt.Errorf("failed to load platform state: %w", err)
	}

	wasConnected := platform.Connected
	platform.Connected = true
	if err := o.platforms.Save(platform); err != nil {
		return fmt.Errorf("failed to persist platform state: %w", err)
	}

	if mode == entities.SyncModeLive {
		adapter, err := o.transports.Get(caps.ConnectionType)
		if err != nil {
			o.rollbackConnect(platform, wasConnected)
			return err
		}
		if err := adapter.Handshake(ctx, platformID, cred); err != nil {
			o.rollbackConnect(platform, wasConnected)
			o.recordConnectionAttempt(platformID, entities.OpConnect, mode, start, err)
			if setErr := o.platforms.SetLastError(platformID, err.Error()); setErr != nil {
				log.Printf("Failed to store last error for %s: %v", platformID, setErr)
			}
			return err
		}
	}

	if err := o.creds.Save(cred); err != nil {
		o.rollbackConnect(platform, wasConnected)
		return fmt.Errorf("failed to store credential: %w", err)
	}

	platform.LastError = ""
	if platform.SyncSettings == "" {
		settings := make(map[entities.DataType]bool, len(caps.SupportedDataTypes))
		for _, dt := range caps.SupportedDataTypes {
			settings[dt] = true
		}
		if err := platform.SetSettingsMap(settings); err != nil {
			return fmt.Errorf("failed to encode default settings: %w", err)
		}
	}
	if err := o.platforms.Save(platform); err != nil {
		return fmt.Errorf("failed to persist platform state: %w", err)
	}

	o.recordConnectionAttempt(platformID, entities.OpConnect, mode, start, nil)
	o.auditConnection(platformID, "connect", nil)
	return nil
}

// rollbackConnect restores the pre-attempt connected flag after a
// failed connect.
func (o *Orchestrator) rollbackConnect(platform *entities.Platform, wasConnected bool) {
	platform.Connected = wasConnected
	if err := o.platforms.Save(platform); err != nil {
		log.Printf("Failed to roll back connection state for %s: %v", platform.ID, err)
	}
}

// Disconnect tears down a platform connection. Remote revocation is best
// effort: its failure is recorded in history but never blocks the local
// disconnect.
func (o *Orchestrator) Disconnect(ctx context.Context, platformID string) error {
	caps, err := o.registry.CapabilitiesOf(platformID)
	if err != nil {
		return err
	}
	if err := o.gateManual(caps, "disconnect"); err != nil {
		return err
	}

	platform, err := o.platforms.Get(platformID)
	if err != nil {
		return fmt.Errorf("failed to load platform state: %w", err)
	}
	if !platform.Connected {
		return ErrNotConnected
	}

	start := time.Now()
	mode := o.Mode(ctx)

	var revokeErr error
	if mode == entities.SyncModeLive {
		cred, credErr := o.creds.Get(platformID)
		if credErr == nil && cred != nil {
			adapter, adapterErr := o.transports.Get(caps.ConnectionType)
			if adapterErr == nil {
				revokeErr = adapter.Revoke(ctx, platformID, cred)
			}
		}
	}

	if err := o.creds.Delete(platformID); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}

	platform.Connected = false
	platform.LastSync = nil
	if err := o.platforms.Save(platform); err != nil {
		return fmt.Errorf("failed to persist platform state: %w", err)
	}

	o.recordConnectionAttempt(platformID, entities.OpDisconnect, mode, start, revokeErr)
	o.auditConnection(platformID, "disconnect", revokeErr)
	if revokeErr != nil {
		log.Printf("Remote revocation failed for %s, credential removed locally: %v", platformID, revokeErr)
	}
	return nil
}

// TestConnection probes the platform and stamps lastTested/testResult.
// It touches no sync state and writes no history.
func (o *Orchestrator) TestConnection(ctx context.Context, platformID string) (entities.TestOutcome, error) {
	caps, err := o.registry.CapabilitiesOf(platformID)
	if err != nil {
		return "", err
	}
	if err := o.gateManual(caps, "testConnection"); err != nil {
		return "", err
	}

	adapter, err := o.transports.Get(caps.ConnectionType)
	if err != nil {
		return "", err
	}

	outcome := entities.TestOutcomePassed
	cred, err := o.creds.Get(platformID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		outcome = entities.TestOutcomeFailed
	} else if err := adapter.Ping(ctx, platformID, cred); err != nil {
		outcome = entities.TestOutcomeFailed
	}

	if err := o.platforms.MarkTested(platformID, outcome); err != nil {
		return "", fmt.Errorf("failed to store test outcome: %w", err)
	}
	return outcome, nil
}

// UpdateSettings merges the given per-data-type toggles into the
// platform's sync settings. Enabling a data type the platform does not
// support is a capability error.
func (o *Orchestrator) UpdateSettings(platformID string, settings map[entities.DataType]bool) error {
	caps, err := o.registry.CapabilitiesOf(platformID)
	if err != nil {
		return err
	}
	if err := o.gateManual(caps, "updateSettings"); err != nil {
		return err
	}

	for dt, enabled := range settings {
		if enabled && !caps.Supports(dt) {
			return &CapabilityError{
				PlatformID: platformID,
				Operation:  "updateSettings",
				Reason:     fmt.Sprintf("data type %q is not supported", dt),
			}
		}
	}

	platform, err := o.platforms.Get(platformID)
	if err != nil {
		return fmt.Errorf("failed to load platform state: %w", err)
	}

	merged := platform.SettingsMap()
	for dt, enabled := range settings {
		merged[dt] = enabled
	}
	if err := platform.SetSettingsMap(merged); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := o.platforms.Save(platform); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}

	o.auditEvent(&entities.AuditEvent{
		EventType:   entities.AuditEventSettings,
		Action:      "update_settings",
		Description: "sync settings updated",
		PlatformID:  platformID,
		Status:      entities.AuditStatusSuccess,
	})
	return nil
}

// SyncRequest describes one platform sync: which data types to transfer
// and, optionally, new payloads to apply optimistically before pushing.
type SyncRequest struct {
	PlatformID string
	// DataTypes to push; empty means every enabled data type
	DataTypes []entities.DataType
	// Updates maps a data type to a new payload applied before the push
	Updates map[entities.DataType]string
}

// SyncReport summarises one platform sync.
type SyncReport struct {
	PlatformID string                   `json:"platform_id"`
	Mode       entities.SyncMode        `json:"mode"`
	Records    []entities.SyncRecord    `json:"records"`
	Rejected   []transport.RejectedItem `json:"rejected,omitempty"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
}

func (r *SyncReport) hasCommittedWork() bool {
	for _, record := range r.Records {
		if record.Status == entities.SyncStatusSuccess || record.Status == entities.SyncStatusPartial {
			return true
		}
	}
	return false
}

func (r *SyncReport) hasPartial() bool {
	for _, record := range r.Records {
		if record.Status == entities.SyncStatusPartial {
			return true
		}
	}
	return false
}

// SyncOne pushes the requested data types to one platform. The returned
// error is nil only when every data type was fully accepted; the report
// carries the per-data-type records either way.
func (o *Orchestrator) SyncOne(ctx context.Context, req SyncRequest) (*SyncReport, error) {
	caps, err := o.registry.CapabilitiesOf(req.PlatformID)
	if err != nil {
		return nil, err
	}
	if err := o.gateManual(caps, "sync"); err != nil {
		return nil, err
	}

	platform, err := o.platforms.Get(req.PlatformID)
	if err != nil {
		return nil, fmt.Errorf("failed to load platform state: %w", err)
	}
	if !platform.Connected {
		return nil, ErrNotConnected
	}

	dataTypes, err := resolveDataTypes(req, caps, platform)
	if err != nil {
		return nil, err
	}
	if len(dataTypes) == 0 {
		return nil, fmt.Errorf("no data types enabled for platform %s", req.PlatformID)
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

	report := &SyncReport{PlatformID: req.PlatformID, Mode: mode, StartedAt: time.Now()}
	var scopeErrs []error

	for _, dt := range dataTypes {
		record, rejected, scopeErr := o.syncScope(ctx, adapter, cred, platform, dt, req.Updates[dt], mode)
		if record != nil {
			report.Records = append(report.Records, *record)
		}
		report.Rejected = append(report.Rejected, rejected...)
		if scopeErr != nil {
			scopeErrs = append(scopeErrs, scopeErr)
		}
	}
	report.FinishedAt = time.Now()

	if report.hasCommittedWork() {
		if err := o.platforms.MarkSynced(req.PlatformID, report.FinishedAt); err != nil {
			log.Printf("Failed to stamp last sync for %s: %v", req.PlatformID, err)
		}
	}

	if len(scopeErrs) > 0 {
		syncErr := classifySyncError(scopeErrs)
		if setErr := o.platforms.SetLastError(req.PlatformID, syncErr.Error()); setErr != nil {
			log.Printf("Failed to store last error for %s: %v", req.PlatformID, setErr)
		}
		return report, syncErr
	}
	return report, nil
}

// syncScope transfers a single data type: snapshot, optional optimistic
// apply, push, then commit or rollback depending on the outcome.
func (o *Orchestrator) syncScope(ctx context.Context, adapter transport.Adapter, cred *entities.DecryptedCredential, platform *entities.Platform, dt entities.DataType, update string, mode entities.SyncMode) (*entities.SyncRecord, []transport.RejectedItem, error) {
	start := time.Now()

	snap, err := o.state.Begin(string(dt))
	if err != nil {
		return nil, nil, err
	}

	payload := snap.Prior()
	if update != "" {
		if err := snap.Apply(update); err != nil {
			if rbErr := snap.Rollback(); rbErr != nil {
				log.Printf("Failed to release scope %s: %v", dt, rbErr)
			}
			return nil, nil, err
		}
		payload = update
	}

	record := &entities.SyncRecord{
		SyncID:     uuid.NewString(),
		PlatformID: platform.ID,
		Operation:  entities.PushOperationFor(dt),
		Mode:       mode,
		ItemsTotal: countItems(payload),
	}

	if mode == entities.SyncModeFallback {
		// No reachable backing service this session: keep the optimistic
		// state and stamp a synthetic success.
		if err := snap.Commit(); err != nil {
			return nil, nil, err
		}
		record.Status = entities.SyncStatusSuccess
		record.ItemsProcessed = record.ItemsTotal
		record.Metadata = `{"synthetic":true}`
		record.DurationMs = time.Since(start).Milliseconds()
		o.appendRecord(record)
		return record, nil, nil
	}

	result, pushErr := adapter.Push(ctx, platform.ID, dt, payload, cred)
	if pushErr != nil {
		// Total failure: local state reverts, the attempt is still recorded
		if rbErr := snap.Rollback(); rbErr != nil {
			log.Printf("Failed to roll back scope %s: %v", dt, rbErr)
		}
		record.Status = entities.SyncStatusFailed
		record.ItemsProcessed = 0
		record.Error = pushErr.Error()
		record.DurationMs = time.Since(start).Milliseconds()

		var rejected []transport.RejectedItem
		var valErr *transport.ValidationError
		if errors.As(pushErr, &valErr) {
			rejected = valErr.Rejected
			record.Metadata = rejectedMetadata(valErr.Rejected)
		}
		o.appendRecord(record)
		return record, rejected, pushErr
	}

	if total := result.Total(); total > 0 {
		record.ItemsTotal = total
	}
	record.DurationMs = time.Since(start).Milliseconds()

	switch {
	case len(result.Rejected) == 0:
		if err := snap.Commit(); err != nil {
			return record, nil, err
		}
		record.Status = entities.SyncStatusSuccess
		record.ItemsProcessed = record.ItemsTotal
		o.appendRecord(record)
		return record, nil, nil

	case len(result.Accepted) == 0:
		// The platform examined the payload and refused every item
		if rbErr := snap.Rollback(); rbErr != nil {
			log.Printf("Failed to roll back scope %s: %v", dt, rbErr)
		}
		valErr := &transport.ValidationError{PlatformID: platform.ID, Rejected: result.Rejected}
		record.Status = entities.SyncStatusFailed
		record.ItemsProcessed = 0
		record.Error = valErr.Error()
		record.Metadata = rejectedMetadata(result.Rejected)
		o.appendRecord(record)
		return record, result.Rejected, valErr

	default:
		// Partial acceptance: accepted items stay committed, rejected
		// ones revert to their prior version
		merged, mergeErr := mergePartial(snap.Prior(), payload, rejectedItemIDs(result.Rejected))
		if mergeErr == nil {
			if err := snap.Apply(merged); err != nil {
				log.Printf("Failed to apply merged scope %s: %v", dt, err)
			}
		} else {
			log.Printf("Keeping applied payload for scope %s as-is: %v", dt, mergeErr)
		}
		if err := snap.Commit(); err != nil {
			return record, result.Rejected, err
		}
		record.Status = entities.SyncStatusPartial
		record.ItemsProcessed = len(result.Accepted)
		record.Metadata = rejectedMetadata(result.Rejected)
		o.appendRecord(record)
		return record, result.Rejected, nil
	}
}

func resolveDataTypes(req SyncRequest, caps registry.Capabilities, platform *entities.Platform) ([]entities.DataType, error) {
	seen := make(map[entities.DataType]bool)
	var out []entities.DataType
	add := func(dt entities.DataType) {
		if !seen[dt] {
			seen[dt] = true
			out = append(out, dt)
		}
	}

	for _, dt := range req.DataTypes {
		add(dt)
	}

	updateTypes := make([]entities.DataType, 0, len(req.Updates))
	for dt := range req.Updates {
		updateTypes = append(updateTypes, dt)
	}
	sort.Slice(updateTypes, func(i, j int) bool { return updateTypes[i] < updateTypes[j] })
	for _, dt := range updateTypes {
		add(dt)
	}

	// Explicitly requested data types must be supported
	for _, dt := range out {
		if !caps.Supports(dt) {
			return nil, &CapabilityError{
				PlatformID: caps.ID,
				Operation:  "sync",
				Reason:     fmt.Sprintf("data type %q is not supported", dt),
			}
		}
	}

	if len(out) == 0 {
		for _, dt := range caps.SupportedDataTypes {
			if platform.SyncEnabled(dt) {
				add(dt)
			}
		}
	}
	return out, nil
}

// classifySyncError picks the error a multi-scope sync surfaces.
// Validation rejections win over transport failures: they carry
// actionable item-level causes, while a transport failure only says the
// attempt should be retried.
func classifySyncError(errs []error) error {
	for _, err := range errs {
		var valErr *transport.ValidationError
		if errors.As(err, &valErr) {
			return err
		}
	}
	return errs[0]
}

func rejectedItemIDs(rejected []transport.RejectedItem) []string {
	ids := make([]string, 0, len(rejected))
	for _, item := range rejected {
		ids = append(ids, item.ItemID)
	}
	return ids
}

func rejectedMetadata(rejected []transport.RejectedItem) string {
	data, err := json.Marshal(map[string]any{"rejected": rejected})
	if err != nil {
		return ""
	}
	return string(data)
}

func (o *Orchestrator) recordConnectionAttempt(platformID string, op entities.SyncOperation, mode entities.SyncMode, start time.Time, opErr error) {
	record := &entities.SyncRecord{
		SyncID:     uuid.NewString(),
		PlatformID: platformID,
		Operation:  op,
		Status:     entities.SyncStatusSuccess,
		Mode:       mode,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if opErr != nil {
		record.Status = entities.SyncStatusFailed
		record.Error = opErr.Error()
	}
	o.appendRecord(record)
}

func (o *Orchestrator) appendRecord(record *entities.SyncRecord) {
	if err := o.history.Append(record); err != nil {
		log.Printf("Failed to append %s record for %s: %v", record.Operation, record.PlatformID, err)
	}
}

func (o *Orchestrator) auditConnection(platformID, action string, opErr error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventConnection,
		Action:      action,
		Description: fmt.Sprintf("platform %s", action),
		PlatformID:  platformID,
		Status:      entities.AuditStatusSuccess,
	}
	if opErr != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = opErr.Error()
	}
	o.auditEvent(event)
}

func (o *Orchestrator) auditEvent(event *entities.AuditEvent) {
	if o.audit == nil {
		return
	}
	if err := o.audit.LogEvent(event); err != nil {
		log.Printf("Failed to record audit event %s: %v", event.Action, err)
	}
}
