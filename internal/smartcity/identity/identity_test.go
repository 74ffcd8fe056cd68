package identity

import (
	"context"
	"testing"
	"time"
)

func TestIssueThenValidateRoundTrips(t *testing.T) {
	m := NewManager("test-signing-key", time.Minute)

	token, session, err := m.Issue("alice", "tenant-a", []string{"operator"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	validated, err := m.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.TenantID != session.TenantID || validated.Subject != "alice" {
		t.Fatalf("expected round-tripped session, got %+v", validated)
	}
	if !validated.HasRole("operator") {
		t.Fatal("expected operator role to survive round trip")
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	m := NewManager("test-signing-key", time.Minute)
	token, _, _ := m.Issue("alice", "tenant-a", nil)

	if _, err := m.Validate(context.Background(), token+"x"); err == nil {
		t.Fatal("expected validation error for tampered token")
	}
}

func TestEstablishAnonymousIsUnauthenticated(t *testing.T) {
	m := NewManager("test-signing-key", time.Minute)

	_, session, err := m.EstablishAnonymous()
	if err != nil {
		t.Fatalf("establish anonymous: %v", err)
	}
	if !session.IsAnonymous() {
		t.Fatalf("expected anonymous session, got %+v", session)
	}
}

func TestUpgradePreservesSessionIDAndSetsTenant(t *testing.T) {
	m := NewManager("test-signing-key", time.Minute)

	_, anon, err := m.EstablishAnonymous()
	if err != nil {
		t.Fatalf("establish anonymous: %v", err)
	}

	token, upgraded, err := m.Upgrade(anon.SessionID, "alice", "tenant-a", []string{"user"})
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if upgraded.IsAnonymous() {
		t.Fatal("expected upgraded session to no longer be anonymous")
	}
	if upgraded.SessionID != anon.SessionID {
		t.Fatalf("expected session id to survive upgrade, got %s want %s", upgraded.SessionID, anon.SessionID)
	}

	validated, err := m.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("validate upgraded token: %v", err)
	}
	if validated.TenantID != "tenant-a" || validated.Subject != "alice" {
		t.Fatalf("unexpected validated session: %+v", validated)
	}
}

func TestUpgradeRejectsEmptyTenant(t *testing.T) {
	m := NewManager("test-signing-key", time.Minute)
	if _, _, err := m.Upgrade("session-1", "alice", "", nil); err == nil {
		t.Fatal("expected error upgrading to an empty tenant")
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	issuer := NewManager("key-one", time.Minute)
	verifier := NewManager("key-two", time.Minute)

	token, _, _ := issuer.Issue("alice", "tenant-a", nil)
	if _, err := verifier.Validate(context.Background(), token); err == nil {
		t.Fatal("expected validation error for mismatched signing key")
	}
}
