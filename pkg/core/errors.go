// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFailure covers an unreachable collaborator or a non-success status.
	ErrNetworkFailure = errors.New("network failure")

	// ErrMalformedResponse covers a reply whose shape cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrInvalidParameter is returned by SimulationParameters.Validate.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// CollaboratorError tags a failure with the external operation that produced it.
type CollaboratorError struct {
	Op   string
	Kind error
	Err  error
}

// NewCollaboratorError builds a CollaboratorError of the given kind.
func NewCollaboratorError(op string, kind error, err error) *CollaboratorError {
	return &CollaboratorError{Op: op, Kind: kind, Err: err}
}

func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Is lets errors.Is match the failure kind.
func (e *CollaboratorError) Is(target error) bool {
	return target == e.Kind
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
