package domain

import (
	"fmt"
	"time"
)

// ErrorTarget names the operation an error came from, e.g. "Call.mute".
type ErrorTarget string

// CallError is the structured error recorded in State.LatestErrors and
// returned to the caller of the failed operation.
type CallError struct {
	Target    ErrorTarget `json:"target"`
	Inner     error       `json:"-"`
	Message   string      `json:"message"`
	Code      int         `json:"code,omitempty"`
	Subcode   int         `json:"subcode,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewCallError(target ErrorTarget, inner error, at time.Time) *CallError {
	e := &CallError{Target: target, Inner: inner, Timestamp: at}
	if inner != nil {
		e.Message = inner.Error()
	}
	return e
}

func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Inner != nil {
		return fmt.Sprintf("%s: %v", e.Target, e.Inner)
	}
	return string(e.Target)
}

// Unwrap exposes the inner error for errors.Is / errors.As.
func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Inner
}

// WithCodes returns a copy carrying the machine-readable codes.
func (e *CallError) WithCodes(code, subcode int) *CallError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Code = code
	cpy.Subcode = subcode
	return &cpy
}
