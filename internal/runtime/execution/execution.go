// Package execution defines the Execution data model and the Domain
// Service Contract every realm implements: HandleIntent turns a validated
// Intent into artifacts and WAL events, or an error.
package execution

import (
	"context"
	"time"

	"github.com/cityos/runtime/internal/abstraction/wal"
	"github.com/cityos/runtime/internal/artifact"
	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtime/intent"
	"github.com/cityos/runtime/internal/smartcity/steward"
)

// State is an execution's position in its lifecycle.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Execution is the runtime's record of handling a single intent.
type Execution struct {
	ExecutionID string
	IntentID    string
	TenantID    string
	State       State
	StartedAt   time.Time
	FinishedAt  time.Time
	ErrorReason string
}

// New constructs an Execution in StateRunning for in.
func New(in intent.Intent) Execution {
	return Execution{
		ExecutionID: idgen.NewExecutionID(),
		IntentID:    in.IntentID,
		TenantID:    in.TenantID,
		State:       StateRunning,
		StartedAt:   time.Now(),
	}
}

// Context is handed to every Domain Service Contract call, giving the
// realm access to the shared WAL and Data Boundary Contract steward
// without needing to construct them itself.
type Context struct {
	Execution Execution
	WAL       *wal.Log
	Steward   *steward.Steward
}

// Event is an event a Domain Service Contract call wants appended to the
// tenant's WAL in addition to the execution's own start/finish bookkeeping.
type Event struct {
	Type    string
	Payload map[string]any
}

// DomainService is the Domain Service Contract: the one method every
// realm implements to turn a validated intent into artifacts and events.
type DomainService interface {
	// Kind returns the intent kind this service handles.
	Kind() string

	// HandleIntent executes in under execCtx, returning the artifacts it
	// produced and any WAL events beyond the execution's own lifecycle
	// events. A non-nil error aborts the execution; the dispatcher appends
	// a failure event and returns no artifacts in its Result. Artifacts the
	// service already accepted in the registry before failing stay accepted.
	HandleIntent(ctx context.Context, execCtx Context, in intent.Intent) ([]artifact.Artifact, []Event, error)
}
