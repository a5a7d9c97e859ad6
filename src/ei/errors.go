package ei

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a contract or coop is absent or the remote reports a non-success status.
// ErrData is returned when a snapshot cannot be scored, such as an unmapped grade tier.
// ErrTransient is returned when a remote call fails below the protocol layer.
// ErrValidation is returned for malformed roster codes.
var (
	ErrNotFound   = errors.New("not found")
	ErrData       = errors.New("data error")
	ErrTransient  = errors.New("transient network error")
	ErrValidation = errors.New("validation error")
)

// CoopError carries the error kind plus the contract and coop that triggered it.
type CoopError struct {
	Kind       error
	ContractID string
	CoopID     string
	Err        error
}

func (e *CoopError) Error() string {
	id := e.ContractID
	if e.CoopID != "" {
		id += "/" + e.CoopID
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", id, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", id, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is and errors.As.
func (e *CoopError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewCoopError builds a CoopError of the given kind.
func NewCoopError(kind error, contractID, coopID string, err error) *CoopError {
	return &CoopError{Kind: kind, ContractID: contractID, CoopID: coopID, Err: err}
}

// NotFound is shorthand for a CoopError of kind ErrNotFound.
func NotFound(contractID, coopID string, err error) error {
	return NewCoopError(ErrNotFound, contractID, coopID, err)
}

// DataError is shorthand for a CoopError of kind ErrData.
func DataError(contractID, coopID string, format string, args ...any) error {
	return NewCoopError(ErrData, contractID, coopID, fmt.Errorf(format, args...))
}

// Transient is shorthand for a CoopError of kind ErrTransient.
func Transient(contractID, coopID string, err error) error {
	return NewCoopError(ErrTransient, contractID, coopID, err)
}
