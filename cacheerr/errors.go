// Package cacheerr implements the error taxonomy of the cache's error
// handling design: CacheMiss, StaleResponse, Combined, InvalidRecordId,
// TypeMismatch, TransportError, and PlanError. Each kind is its own struct
// implementing error and SanitizedError, a pair that lets a caller log or
// inspect the full Error() detail while only ever surfacing SanitizedError()
// to a UI layer.
package cacheerr

import "fmt"

// SanitizedError is an error safe to surface to a UI layer without leaking
// internal detail.
type SanitizedError interface {
	error
	SanitizedError() string
}

// CacheMissErr reports that cache-only could not satisfy a request from
// local state. Never logged; surfaced only to the immediate caller.
type CacheMissErr struct {
	Signature string
}

func (e *CacheMissErr) Error() string {
	return fmt.Sprintf("cache miss for signature %s", e.Signature)
}
func (e *CacheMissErr) SanitizedError() string { return "cache miss" }

// StaleResponseErr marks a network reply that arrived after its operation
// was superseded. The reply is discarded and never written to the graph;
// the superseded call's future, whose callers have all released it,
// resolves with this error.
type StaleResponseErr struct {
	Signature string
}

func (e *StaleResponseErr) Error() string {
	return fmt.Sprintf("stale response for signature %s", e.Signature)
}
func (e *StaleResponseErr) SanitizedError() string { return "stale response" }

// PartialError is one element of a Combined error's list.
type PartialError struct {
	Message string
	Path    []string
}

// CombinedErr aggregates multiple partial errors from a single operation.
type CombinedErr struct {
	Errors []PartialError
}

func (e *CombinedErr) Error() string {
	if len(e.Errors) == 0 {
		return "combined error (empty)"
	}
	return fmt.Sprintf("%d GraphQL error(s), first: %s", len(e.Errors), e.Errors[0].Message)
}
func (e *CombinedErr) SanitizedError() string { return "request returned errors" }

// InvalidRecordIDErr signals a store contract violation: a malformed record
// identifier. A fatal bug in the caller.
type InvalidRecordIDErr struct {
	ID     string
	Reason string
}

func (e *InvalidRecordIDErr) Error() string {
	return fmt.Sprintf("invalid record id %q: %s", e.ID, e.Reason)
}
func (e *InvalidRecordIDErr) SanitizedError() string { return "internal cache error" }

// TypeMismatchErr signals writing a __typename different from the concrete
// part of the target record id.
type TypeMismatchErr struct {
	ID       string
	Expected string
	Got      string
}

func (e *TypeMismatchErr) Error() string {
	return fmt.Sprintf("record %q: expected typename %q, got %q", e.ID, e.Expected, e.Got)
}
func (e *TypeMismatchErr) SanitizedError() string { return "internal cache error" }

// TransportErr wraps an opaque error forwarded from the transport.
type TransportErr struct {
	Cause error
}

func (e *TransportErr) Error() string       { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e *TransportErr) Unwrap() error       { return e.Cause }
func (e *TransportErr) SanitizedError() string { return "network error" }

// PlanErr signals a malformed document or an unsupported construct
// encountered while compiling a plan.
type PlanErr struct {
	Message string
}

func (e *PlanErr) Error() string          { return "plan error: " + e.Message }
func (e *PlanErr) SanitizedError() string { return "invalid query" }

func NewPlanErr(format string, a ...interface{}) error {
	return &PlanErr{Message: fmt.Sprintf(format, a...)}
}
