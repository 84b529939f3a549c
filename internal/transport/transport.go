// Package transport contains the adapters that move aggregate slices to
// and from external booking platforms. One adapter exists per connection
// class; platforms with a manual connection class have no adapter at all.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mrlokans/stagesync/internal/entities"
)

const defaultTimeout = 30 * time.Second

// Result describes the outcome of a push: which items the platform
// accepted and which it rejected with a reason.
type Result struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedItem `json:"rejected"`
}

// Total returns the number of items the platform examined.
func (r *Result) Total() int {
	return len(r.Accepted) + len(r.Rejected)
}

// RejectedItem identifies one payload item the platform refused.
type RejectedItem struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// Adapter defines the operations every connection class must support.
// Payloads are opaque JSON; adapters move them without interpreting the
// domain schema.
type Adapter interface {
	// ConnectionType returns the connection class this adapter serves
	ConnectionType() entities.ConnectionType

	// Handshake verifies the credential against the platform and is
	// called once when a platform is connected
	Handshake(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error

	// Ping checks that the platform is reachable and the credential is
	// still accepted
	Ping(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error

	// Push transfers one aggregate slice to the platform and reports
	// per-item acceptance
	Push(ctx context.Context, platformID string, dataType entities.DataType, payload string, cred *entities.DecryptedCredential) (*Result, error)

	// Pull fetches the platform's current copy of one aggregate slice
	Pull(ctx context.Context, platformID string, dataType entities.DataType, cred *entities.DecryptedCredential) (string, error)

	// Revoke invalidates the credential on the platform side
	Revoke(ctx context.Context, platformID string, cred *entities.DecryptedCredential) error
}

// Registry manages the adapters by connection class.
type Registry struct {
	mu       sync.RWMutex
	adapters map[entities.ConnectionType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[entities.ConnectionType]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ConnectionType()] = a
}

// Get retrieves the adapter for a connection class.
func (r *Registry) Get(ct entities.ConnectionType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[ct]
	if !ok {
		return nil, fmt.Errorf("no transport adapter for connection type %q", ct)
	}
	return a, nil
}

// Probe reports whether the backing service behind baseURL answers
// within the given timeout. The answer decides live versus fallback mode
// for a sync session; a slow-but-alive service still counts as live.
func Probe(ctx context.Context, baseURL string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
