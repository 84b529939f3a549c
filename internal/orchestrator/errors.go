package orchestrator

import (
	"errors"
	"fmt"
)

// ErrNotConnected indicates an operation that needs an established
// connection ran against a disconnected platform
var ErrNotConnected = errors.New("platform is not connected")

// CapabilityError rejects an operation the platform's connection class
// cannot perform. It is raised before any state mutation or history
// write; retrying the same operation cannot succeed.
type CapabilityError struct {
	PlatformID string
	Operation  string
	Reason     string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("platform %s does not support %s: %s", e.PlatformID, e.Operation, e.Reason)
}
