// Package steward is the data-steward Smart City governance primitive: it
// negotiates and enforces the Data Boundary Contract, the two-phase
// protocol that gates materialization of externally sourced content. Phase
// one (RequestDataAccess) admits an execution to read from an external
// source without yet permitting it to retain anything derived from that
// read; phase two (AuthorizeMaterialization) is a separate, later decision
// that opens a specific materialization type, TTL, and reference scope.
package steward

import (
	"context"
	"sync"
	"time"

	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// ContractStatus tracks where a contract sits in its two-phase lifecycle.
type ContractStatus string

const (
	ContractPending ContractStatus = "pending"
	ContractActive  ContractStatus = "active"
	ContractExpired ContractStatus = "expired"
	ContractRevoked ContractStatus = "revoked"
)

// MaterializationType names the kind of retention a contract's phase two
// authorizes. The type is recorded on the contract and on the content
// realm's materialization index row; the runtime handles every type the
// same way. The ingested bytes stay in the blob store whatever the type,
// purge treats all types alike, and no type creates a Record of Fact by
// itself (extract_embeddings records one regardless of type).
type MaterializationType string

const (
	MaterializationReference         MaterializationType = "reference"
	MaterializationPartialExtraction MaterializationType = "partial_extraction"
	MaterializationDeterministic     MaterializationType = "deterministic"
	MaterializationSemanticEmbedding MaterializationType = "semantic_embedding"
	MaterializationFullArtifact      MaterializationType = "full_artifact"
)

// Scope names who a materialization is visible to. At minimum it carries
// the requesting user; ScopeType distinguishes a single user's private
// scope from one shared across a workspace.
type Scope struct {
	UserID    string
	ScopeType string
}

// Contract is a Data Boundary Contract governing one external source read
// by one intent.
type Contract struct {
	ContractID               string
	TenantID                 string
	UserID                   string
	IntentID                 string
	ExternalSourceType       string
	ExternalSourceIdentifier string

	AccessGranted                bool
	MaterializationAllowed       bool
	MaterializationType          MaterializationType
	MaterializationTTL           time.Duration
	MaterializationBackingStore  string
	MaterializationScope         Scope
	ReferenceScope               []string

	Status ContractStatus

	ActivatedAt   time.Time
	ExpiredAt     time.Time
	RevokedAt     time.Time
	RevokedReason string
}

// PermitsReference reports whether userID may read back a file materialized
// under c: the contract must still be active, its phase two must have run,
// and userID must be within the reference scope it opened.
func (c Contract) PermitsReference(userID string) bool {
	if c.Status != ContractActive || !c.MaterializationAllowed {
		return false
	}
	for _, id := range c.ReferenceScope {
		if id == userID {
			return true
		}
	}
	return false
}

// Steward tracks outstanding contracts in memory only. Nothing writes them
// to the row store, so contracts do not survive a process restart.
type Steward struct {
	mu        sync.Mutex
	contracts map[string]Contract
}

// New constructs an empty Steward.
func New() *Steward {
	return &Steward{contracts: make(map[string]Contract)}
}

// RequestDataAccess opens phase one of the Data Boundary Contract
// protocol: it grants the intent read access to an external source
// (sourceType/sourceIdentifier, e.g. "upload"/a file name) without yet
// permitting anything derived from that read to be materialized. The
// returned contract is pending until a later AuthorizeMaterialization call
// opens phase two.
func (s *Steward) RequestDataAccess(_ context.Context, tenantID, userID, intentID, sourceType, sourceIdentifier string) (Contract, error) {
	c := Contract{
		ContractID:               idgen.NewContractID(),
		TenantID:                 tenantID,
		UserID:                   userID,
		IntentID:                 intentID,
		ExternalSourceType:       sourceType,
		ExternalSourceIdentifier: sourceIdentifier,
		AccessGranted:            true,
		MaterializationAllowed:   false,
		Status:                   ContractPending,
	}

	s.mu.Lock()
	s.contracts[c.ContractID] = c
	s.mu.Unlock()
	return c, nil
}

// AuthorizeMaterialization closes phase two: it selects the materialization
// type, TTL, and backing store the caller asked for, sets the reference
// and materialization scope to at least the requesting user, and
// transitions contractID from pending to active. It rejects a contract
// that is not pending (already active, expired, revoked, or unknown) and a
// contract that never granted access in phase one.
func (s *Steward) AuthorizeMaterialization(_ context.Context, contractID, userID string, materializationType MaterializationType, ttl time.Duration, backingStore string) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[contractID]
	if !ok {
		return Contract{}, runtimeerr.ErrContractViolation
	}
	if c.Status != ContractPending || !c.AccessGranted {
		return Contract{}, runtimeerr.ErrContractViolation
	}

	c.MaterializationAllowed = true
	c.MaterializationType = materializationType
	c.MaterializationTTL = ttl
	c.MaterializationBackingStore = backingStore
	c.MaterializationScope = Scope{UserID: userID, ScopeType: "workspace"}
	c.ReferenceScope = []string{userID}
	c.Status = ContractActive
	c.ActivatedAt = time.Now()

	s.contracts[contractID] = c
	return c, nil
}

// Expire transitions contractID to expired as of at, e.g. when its
// materialization TTL has elapsed. It is idempotent: expiring an already
// expired or revoked contract is a no-op.
func (s *Steward) Expire(_ context.Context, contractID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[contractID]
	if !ok {
		return runtimeerr.ErrContractViolation
	}
	if c.Status == ContractExpired || c.Status == ContractRevoked {
		return nil
	}
	c.Status = ContractExpired
	c.MaterializationAllowed = false
	c.ExpiredAt = at
	s.contracts[contractID] = c
	return nil
}

// Get returns the contract for contractID.
func (s *Steward) Get(contractID string) (Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return Contract{}, runtimeerr.ErrContractViolation
	}
	return c, nil
}
