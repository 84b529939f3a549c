package transport

import (
	"errors"
	"fmt"
)

// ErrAuthRequired indicates the credential is missing, expired or no
// longer accepted by the platform
var ErrAuthRequired = errors.New("platform credential missing or rejected")

// TransportError represents a network-level failure: the platform was
// unreachable, timed out, or answered with a server error. The payload
// was not examined, so the caller may retry.
type TransportError struct {
	PlatformID string
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport failure on %s for %s: HTTP %d", e.Op, e.PlatformID, e.StatusCode)
	}
	return fmt.Sprintf("transport failure on %s for %s: %v", e.Op, e.PlatformID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError indicates the platform examined the payload and
// rejected some or all of its items. Retrying without changing the
// items cannot succeed.
type ValidationError struct {
	PlatformID string
	Rejected   []RejectedItem
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("platform %s rejected %d item(s)", e.PlatformID, len(e.Rejected))
}
