package edge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	core "github.com/cityos/runtime/internal/app/core/service"
	"github.com/cityos/runtime/internal/app/system"
	"github.com/cityos/runtime/internal/abstraction/wal"
	"github.com/cityos/runtime/internal/capability/pubsub"
	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/runtime/dispatcher"
	"github.com/cityos/runtime/internal/runtime/streambus"
	"github.com/cityos/runtime/internal/smartcity/identity"
	"github.com/cityos/runtime/internal/smartcity/steward"
	"github.com/cityos/runtime/internal/smartcity/tenancy"
	"github.com/cityos/runtime/internal/smartcity/trafficcop"
)

func newTestService(t *testing.T) (*Service, *identity.Manager) {
	t.Helper()
	tenants := tenancy.NewRegistry()
	tenants.Register("tenant-a", "Tenant A")
	cop := trafficcop.New(trafficcop.Policy{RequestsPerSecond: 1000, Burst: 1000})
	d := dispatcher.New(nil, wal.New(rowstore.NewMemoryStore()), steward.New(), tenants, cop, 2, 16)
	stream := streambus.New(pubsub.NewMemoryBus())
	ident := identity.NewManager("test-signing-key", time.Minute)
	return NewService(":0", d, stream, ident, nil, nil), ident
}

func TestHealthzIsPublic(t *testing.T) {
	svc, _ := newTestService(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSubmitIntentRequiresAuth(t *testing.T) {
	svc, _ := newTestService(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/intents", bytes.NewBufferString(`{"kind":"echo"}`))
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSubmitIntentRejectsUnknownKind(t *testing.T) {
	svc, ident := newTestService(t)
	token, _, err := ident.Issue("alice", "tenant-a", []string{"user"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/intents", bytes.NewBufferString(`{"kind":"unknown"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError && rec.Code != http.StatusBadRequest {
		t.Fatalf("expected rejection for unknown kind, got %d: %s", rec.Code, rec.Body.String())
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestCreateAnonymousSessionRequiresNoAuth(t *testing.T) {
	svc, _ := newTestService(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Anonymous || body.Token == "" || body.SessionID == "" {
		t.Fatalf("expected anonymous session with token and id, got %+v", body)
	}
}

func TestUpgradeSessionRequiresMatchingBearerToken(t *testing.T) {
	svc, _ := newTestService(t)

	anonReq := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	anonRec := httptest.NewRecorder()
	svc.handler.ServeHTTP(anonRec, anonReq)

	var anon sessionResponse
	if err := json.Unmarshal(anonRec.Body.Bytes(), &anon); err != nil {
		t.Fatalf("decode anonymous session: %v", err)
	}

	upgradeReq := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+anon.SessionID+"/upgrade",
		bytes.NewBufferString(`{"tenant_id":"tenant-a","subject":"alice","roles":["user"]}`))
	upgradeReq.Header.Set("Authorization", "Bearer "+anon.Token)
	upgradeRec := httptest.NewRecorder()
	svc.handler.ServeHTTP(upgradeRec, upgradeReq)

	if upgradeRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", upgradeRec.Code, upgradeRec.Body.String())
	}
	var upgraded sessionResponse
	if err := json.Unmarshal(upgradeRec.Body.Bytes(), &upgraded); err != nil {
		t.Fatalf("decode upgraded session: %v", err)
	}
	if upgraded.Anonymous || upgraded.TenantID != "tenant-a" || upgraded.SessionID != anon.SessionID {
		t.Fatalf("expected upgraded active session preserving id, got %+v", upgraded)
	}
}

func TestDescriptorsEndpointRequiresAuthAndReturnsInventory(t *testing.T) {
	tenants := tenancy.NewRegistry()
	tenants.Register("tenant-a", "Tenant A")
	cop := trafficcop.New(trafficcop.Policy{RequestsPerSecond: 1000, Burst: 1000})
	d := dispatcher.New(nil, wal.New(rowstore.NewMemoryStore()), steward.New(), tenants, cop, 2, 16)
	stream := streambus.New(pubsub.NewMemoryBus())
	ident := identity.NewManager("test-signing-key", time.Minute)

	manager := system.NewManager()
	cronSvc := system.NewCronService("test-cron", cron.New())
	if err := manager.Register(cronSvc); err != nil {
		t.Fatalf("register cron: %v", err)
	}
	svc := NewService(":0", d, stream, ident, manager.Descriptors, nil)

	unauthed := httptest.NewRequest(http.MethodGet, "/v1/system/descriptors", nil)
	unauthedRec := httptest.NewRecorder()
	svc.handler.ServeHTTP(unauthedRec, unauthed)
	if unauthedRec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", unauthedRec.Code)
	}

	token, _, err := ident.Issue("alice", "tenant-a", []string{"user"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/system/descriptors", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var descriptors []core.Descriptor
	if err := json.Unmarshal(rec.Body.Bytes(), &descriptors); err != nil {
		t.Fatalf("decode descriptors: %v", err)
	}
	if len(descriptors) != 1 || descriptors[0].Name != "test-cron" {
		t.Fatalf("expected the registered cron descriptor, got %+v", descriptors)
	}
}

func TestUpgradeSessionRejectsMismatchedSessionID(t *testing.T) {
	svc, _ := newTestService(t)

	anonReq := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	anonRec := httptest.NewRecorder()
	svc.handler.ServeHTTP(anonRec, anonReq)

	var anon sessionResponse
	if err := json.Unmarshal(anonRec.Body.Bytes(), &anon); err != nil {
		t.Fatalf("decode anonymous session: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/not-my-session/upgrade",
		bytes.NewBufferString(`{"tenant_id":"tenant-a"}`))
	req.Header.Set("Authorization", "Bearer "+anon.Token)
	rec := httptest.NewRecorder()
	svc.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}
