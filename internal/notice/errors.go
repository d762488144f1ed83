package notice

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrUpstream   = errors.New("upstream unavailable")
	ErrStore      = errors.New("store failure")
)

// ValidationError rejects a request before any I/O happens
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UpstreamError is returned when the notice source is unreachable or
// answers with a non-success status. StatusCode is 0 for transport errors.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("upstream returned status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// StoreError wraps a read or write failure against durable storage
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }

// NormalizationWarning records a field that could not be parsed. The
// record is still produced with that field left absent.
type NormalizationWarning struct {
	Key   string
	Field string
	Value string
}

func (w NormalizationWarning) Error() string {
	return fmt.Sprintf("notice %s: unparseable %s %q", w.Key, w.Field, w.Value)
}
