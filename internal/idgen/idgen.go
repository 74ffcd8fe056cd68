// Package idgen generates the identifiers used across the Intent, Execution,
// Artifact, and Contract data model: UUIDv4 strings prefixed by entity kind
// so ids remain self-describing in logs and traces.
package idgen

import "github.com/google/uuid"

// NewIntentID returns a new intent identifier.
func NewIntentID() string { return "intent-" + uuid.NewString() }

// NewExecutionID returns a new execution identifier.
func NewExecutionID() string { return "exec-" + uuid.NewString() }

// NewArtifactID returns a new artifact identifier.
func NewArtifactID() string { return "artifact-" + uuid.NewString() }

// NewContractID returns a new Data Boundary Contract identifier.
func NewContractID() string { return "contract-" + uuid.NewString() }

// NewMaterializationID returns a new materialization identifier.
func NewMaterializationID() string { return "materialization-" + uuid.NewString() }

// NewSessionID returns a new session identifier.
func NewSessionID() string { return "session-" + uuid.NewString() }

// NewRecordID returns a new Record of Fact identifier.
func NewRecordID() string { return "record-" + uuid.NewString() }
