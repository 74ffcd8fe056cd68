// Package runtimeerr defines the runtime's shared error taxonomy: sentinel
// errors for each failure class named in the error handling design, plus
// wrapper types that attach intent/execution/tenant context.
package runtimeerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Components return these directly, or wrapped via the
// *Error types below, so callers can classify failures with errors.Is.
var (
	// ErrValidation marks an intent or parameter that failed schema or
	// semantic validation before execution began.
	ErrValidation = errors.New("validation failed")

	// ErrContractViolation marks a Data Boundary Contract breach: a
	// materialization attempted outside its negotiated schema or window.
	ErrContractViolation = errors.New("data boundary contract violation")

	// ErrSagaCompensated marks an execution that failed partway and was
	// rolled back via compensating actions; the intent itself did not
	// succeed but the system is left consistent.
	ErrSagaCompensated = errors.New("execution compensated")

	// ErrTenantNotFound marks a reference to a tenant that tenancy has no
	// record of.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantSuspended marks a tenant whose intents are being rejected
	// by tenancy's RequireActive check because governance suspended it.
	ErrTenantSuspended = errors.New("tenant suspended")

	// ErrCapabilityUnavailable marks a capability backend (row store, blob
	// store, graph store, pubsub, cache) that could not be reached.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrArtifactNotFound marks a reference to an artifact id/version the
	// artifact registry has no record of.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactObsolete marks an attempt to materialize or read an
	// artifact version that has already been superseded.
	ErrArtifactObsolete = errors.New("artifact obsolete")

	// ErrDispatchQueueFull marks a tenant's FIFO dispatch queue rejecting
	// a new intent because backpressure kicked in.
	ErrDispatchQueueFull = errors.New("dispatch queue full")

	// ErrUnauthorized marks a request identity lacks the role or tenant
	// membership a component requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSequenceConflict marks a write-ahead log append whose expected
	// sequence number no longer matches the tenant's log head.
	ErrSequenceConflict = errors.New("wal sequence conflict")

	// ErrDeniedByPolicy marks a request for an artifact or file that is
	// outside the requester's materialization reference scope: the
	// resource exists, but the caller's Data Boundary Contract does not
	// admit them to it.
	ErrDeniedByPolicy = errors.New("denied by policy")
)

// IntentError attaches intent and tenant context to a sentinel failure.
type IntentError struct {
	TenantID string
	IntentID string
	Op       string
	Err      error
}

func (e *IntentError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("tenant %s intent %s: %s: %v", e.TenantID, e.IntentID, e.Op, e.Err)
	}
	return fmt.Sprintf("tenant %s intent %s: %v", e.TenantID, e.IntentID, e.Err)
}

func (e *IntentError) Unwrap() error { return e.Err }

// NewIntentError wraps err with intent context. Returns nil if err is nil.
func NewIntentError(tenantID, intentID, op string, err error) error {
	if err == nil {
		return nil
	}
	return &IntentError{TenantID: tenantID, IntentID: intentID, Op: op, Err: err}
}

// ExecutionError attaches execution context to a sentinel failure.
type ExecutionError struct {
	TenantID    string
	ExecutionID string
	Stage       string
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tenant %s execution %s: stage %s: %v", e.TenantID, e.ExecutionID, e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NewExecutionError wraps err with execution context. Returns nil if err is nil.
func NewExecutionError(tenantID, executionID, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{TenantID: tenantID, ExecutionID: executionID, Stage: stage, Err: err}
}

// CapabilityError attaches backend context to a capability failure.
type CapabilityError struct {
	Capability string // "rowstore", "blobstore", "graphstore", "pubsub", "cache"
	Op         string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Capability, e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error { return ErrCapabilityUnavailable }

// NewCapabilityError wraps err with capability context. Returns nil if err is nil.
func NewCapabilityError(capability, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CapabilityError{Capability: capability, Op: op, Err: err}
}

// IsValidation reports whether err is, or wraps, ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsContractViolation reports whether err is, or wraps, ErrContractViolation.
func IsContractViolation(err error) bool { return errors.Is(err, ErrContractViolation) }

// IsTenantSuspended reports whether err is, or wraps, ErrTenantSuspended.
func IsTenantSuspended(err error) bool { return errors.Is(err, ErrTenantSuspended) }

// IsCapabilityUnavailable reports whether err is, or wraps, a capability failure.
func IsCapabilityUnavailable(err error) bool { return errors.Is(err, ErrCapabilityUnavailable) }

// IsArtifactNotFound reports whether err is, or wraps, ErrArtifactNotFound.
func IsArtifactNotFound(err error) bool { return errors.Is(err, ErrArtifactNotFound) }

// IsUnauthorized reports whether err is, or wraps, ErrUnauthorized.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsSequenceConflict reports whether err is, or wraps, ErrSequenceConflict.
func IsSequenceConflict(err error) bool { return errors.Is(err, ErrSequenceConflict) }

// IsDeniedByPolicy reports whether err is, or wraps, ErrDeniedByPolicy.
func IsDeniedByPolicy(err error) bool { return errors.Is(err, ErrDeniedByPolicy) }
