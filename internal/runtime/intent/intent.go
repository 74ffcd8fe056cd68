// Package intent defines the Intent data model: the unit of work a caller
// submits to the runtime, and the validation that must pass before the
// dispatcher will admit it for execution.
package intent

import (
	"fmt"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// Status is an intent's position in its lifecycle.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
)

// Intent is a unit of work submitted by a tenant for a domain service to
// handle.
type Intent struct {
	IntentID    string
	TenantID    string
	Kind        string
	Parameters  map[string]any
	SubmittedBy string
	SubmittedAt time.Time
	Status      Status
}

// New constructs an Intent in StatusSubmitted, minting a fresh IntentID.
func New(tenantID, kind, submittedBy string, parameters map[string]any) Intent {
	return Intent{
		IntentID:    idgen.NewIntentID(),
		TenantID:    tenantID,
		Kind:        kind,
		Parameters:  parameters,
		SubmittedBy: submittedBy,
		SubmittedAt: time.Now(),
		Status:      StatusSubmitted,
	}
}

// Schema declares what a domain service requires of an intent's
// parameters before it will accept the intent: a set of JSONPath
// expressions that must resolve against Parameters.
type Schema struct {
	Kind          string
	RequiredPaths []string
}

// Validate checks intent.Parameters against schema, returning a wrapped
// runtimeerr.ErrValidation naming the first missing path.
func Validate(in Intent, schema Schema) error {
	if in.Kind != schema.Kind {
		return runtimeerr.NewIntentError(in.TenantID, in.IntentID, "validate",
			fmt.Errorf("%w: intent kind %q does not match schema kind %q", runtimeerr.ErrValidation, in.Kind, schema.Kind))
	}

	document := map[string]any{"parameters": in.Parameters}
	for _, path := range schema.RequiredPaths {
		if _, err := jsonpath.Get(path, document); err != nil {
			return runtimeerr.NewIntentError(in.TenantID, in.IntentID, "validate",
				fmt.Errorf("%w: missing required parameter %q", runtimeerr.ErrValidation, path))
		}
	}
	return nil
}
