// Package identity is the Smart City governance primitive for
// authentication and session issuance: it turns a bearer credential into a
// Session carrying the caller's tenant and roles, which the Experience
// Edge attaches to the request so its handlers use it without
// re-verifying.
package identity

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/cityos/runtime/internal/idgen"
	"github.com/cityos/runtime/internal/runtimeerr"
)

// hkdfInfo distinguishes the derived signing key from any other secret an
// operator might derive from the same master key.
var hkdfInfo = []byte("cityruntime.identity.session-signing-key")

// Session is the authenticated identity attached to an inbound request for
// the lifetime of its handling.
type Session struct {
	SessionID string
	TenantID  string
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the session carries role.
func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAnonymous reports whether the session has not yet been upgraded with a
// tenant and subject identity.
func (s Session) IsAnonymous() bool {
	return s.TenantID == ""
}

// claims is the JWT payload this manager issues and verifies.
type claims struct {
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Manager issues and validates sessions signed with a shared HMAC secret.
type Manager struct {
	signingKey []byte
	expiry     time.Duration
}

// NewManager constructs a Manager. signingKey must be non-empty in
// production; development deployments may pass a generated key. The operator
// secret is never used directly as HMAC key material: it is expanded via
// HKDF into a dedicated session-signing key, so the same master secret can
// also be used to derive other purpose-specific keys elsewhere without
// cross-contamination.
func NewManager(signingKey string, expiry time.Duration) *Manager {
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	derived := make([]byte, 32)
	kdf := hkdf.New(sha3.New256, []byte(signingKey), nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, derived); err != nil {
		derived = []byte(signingKey)
	}
	return &Manager{signingKey: derived, expiry: expiry}
}

// Issue mints a signed token for subject in tenantID carrying roles, along
// with the Session describing it.
func (m *Manager) Issue(subject, tenantID string, roles []string) (token string, session Session, err error) {
	now := time.Now()
	session = Session{
		SessionID: idgen.NewSessionID(),
		TenantID:  tenantID,
		Subject:   subject,
		Roles:     roles,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.expiry),
	}

	c := claims{
		TenantID: tenantID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.SessionID,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := raw.SignedString(m.signingKey)
	if err != nil {
		return "", Session{}, fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, session, nil
}

// EstablishAnonymous mints a session with no tenant or subject, the
// starting state for a caller that has not yet authenticated.
func (m *Manager) EstablishAnonymous() (token string, session Session, err error) {
	return m.Issue("", "", nil)
}

// Upgrade transitions an anonymous session to active, binding it to subject
// and tenantID while preserving sessionID so callers that already hold the
// anonymous session's id keep continuity across the upgrade.
func (m *Manager) Upgrade(sessionID, subject, tenantID string, roles []string) (token string, session Session, err error) {
	if tenantID == "" {
		return "", Session{}, fmt.Errorf("identity: cannot upgrade to an empty tenant")
	}

	now := time.Now()
	session = Session{
		SessionID: sessionID,
		TenantID:  tenantID,
		Subject:   subject,
		Roles:     roles,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.expiry),
	}
	if session.SessionID == "" {
		session.SessionID = idgen.NewSessionID()
	}

	c := claims{
		TenantID: tenantID,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.SessionID,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := raw.SignedString(m.signingKey)
	if err != nil {
		return "", Session{}, fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, session, nil
}

// Validate parses and verifies token, returning the Session it encodes.
func (m *Manager) Validate(_ context.Context, token string) (Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, runtimeerr.ErrUnauthorized
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return Session{}, runtimeerr.ErrUnauthorized
	}

	return Session{
		SessionID: c.ID,
		TenantID:  c.TenantID,
		Subject:   c.Subject,
		Roles:     c.Roles,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
