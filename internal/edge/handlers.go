package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	core "github.com/cityos/runtime/internal/app/core/service"
	"github.com/cityos/runtime/internal/runtime/dispatcher"
	"github.com/cityos/runtime/internal/runtime/intent"
	"github.com/cityos/runtime/internal/runtime/streambus"
	"github.com/cityos/runtime/internal/runtimeerr"
	"github.com/cityos/runtime/internal/smartcity/identity"
	"github.com/cityos/runtime/pkg/logger"
)

var errUnauthorised = errors.New("unauthorised")

const submitTimeout = 30 * time.Second

func newRouter(d *dispatcher.Dispatcher, stream *streambus.Bus, ident *identity.Manager, descriptors func() []core.Descriptor, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("POST /v1/sessions", handleCreateAnonymousSession(ident))
	mux.HandleFunc("POST /v1/sessions/{id}/upgrade", handleUpgradeSession(ident))
	mux.HandleFunc("GET /v1/sessions/{id}", handleGetSession())
	mux.HandleFunc("/v1/intents", handleSubmitIntent(d))
	mux.HandleFunc("/v1/stream", handleStream(stream, log))
	mux.HandleFunc("GET /v1/system/descriptors", handleDescriptors(descriptors))
	return mux
}

// handleDescriptors exposes the runtime's registered service inventory for
// orchestration and documentation tooling, without affecting dispatch.
func handleDescriptors(descriptors func() []core.Descriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if descriptors == nil {
			writeJSON(w, http.StatusOK, []core.Descriptor{})
			return
		}
		writeJSON(w, http.StatusOK, descriptors())
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type sessionResponse struct {
	SessionID string   `json:"session_id"`
	Token     string   `json:"token"`
	TenantID  string   `json:"tenant_id,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Anonymous bool     `json:"anonymous"`
	ExpiresAt int64    `json:"expires_at"`
}

func newSessionResponse(token string, session identity.Session) sessionResponse {
	return sessionResponse{
		SessionID: session.SessionID,
		Token:     token,
		TenantID:  session.TenantID,
		Subject:   session.Subject,
		Roles:     session.Roles,
		Anonymous: session.IsAnonymous(),
		ExpiresAt: session.ExpiresAt.Unix(),
	}
}

// handleCreateAnonymousSession mints a session with no tenant or subject so
// a caller can start interacting with the runtime before authenticating.
func handleCreateAnonymousSession(ident *identity.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ident == nil {
			writeError(w, http.StatusServiceUnavailable, fmt.Errorf("identity manager not configured"))
			return
		}

		token, session, err := ident.EstablishAnonymous()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSessionResponse(token, session))
	}
}

type upgradeSessionRequest struct {
	TenantID string   `json:"tenant_id"`
	Subject  string   `json:"subject"`
	Roles    []string `json:"roles"`
}

// handleUpgradeSession transitions the caller's anonymous session to active,
// binding it to a tenant and subject identity.
func handleUpgradeSession(ident *identity.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ident == nil {
			writeError(w, http.StatusServiceUnavailable, fmt.Errorf("identity manager not configured"))
			return
		}

		session, ok := sessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errUnauthorised)
			return
		}
		if session.SessionID != r.PathValue("id") {
			writeError(w, http.StatusForbidden, fmt.Errorf("session id does not match bearer token"))
			return
		}

		var req upgradeSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.TenantID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: tenant_id is required", runtimeerr.ErrValidation))
			return
		}

		token, upgraded, err := ident.Upgrade(session.SessionID, req.Subject, req.TenantID, req.Roles)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(token, upgraded))
	}
}

// handleGetSession returns the session attached to the bearer token used for
// the request.
func handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errUnauthorised)
			return
		}
		if session.SessionID != r.PathValue("id") {
			writeError(w, http.StatusForbidden, fmt.Errorf("session id does not match bearer token"))
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse("", session))
	}
}

type submitRequest struct {
	Kind       string         `json:"kind"`
	Parameters map[string]any `json:"parameters"`
}

type submitResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	ArtifactIDs []string `json:"artifact_ids,omitempty"`
	Error       string `json:"error,omitempty"`
}

func handleSubmitIntent(d *dispatcher.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}

		session, ok := sessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errUnauthorised)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		if req.Kind == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: kind is required", runtimeerr.ErrValidation))
			return
		}

		in := intent.New(session.TenantID, req.Kind, session.Subject, req.Parameters)

		ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
		defer cancel()

		resultCh, err := d.Submit(ctx, in)
		if err != nil {
			writeErrorFromRuntime(w, err)
			return
		}

		select {
		case res := <-resultCh:
			resp := submitResponse{ExecutionID: res.Execution.ExecutionID, State: string(res.Execution.State)}
			for _, a := range res.Artifacts {
				resp.ArtifactIDs = append(resp.ArtifactIDs, a.ArtifactID)
			}
			if res.Err != nil {
				resp.Error = res.Err.Error()
				writeJSON(w, http.StatusUnprocessableEntity, resp)
				return
			}
			writeJSON(w, http.StatusOK, resp)
		case <-ctx.Done():
			writeError(w, http.StatusGatewayTimeout, fmt.Errorf("execution did not complete in time"))
		}
	}
}

func writeErrorFromRuntime(w http.ResponseWriter, err error) {
	switch {
	case runtimeerr.IsValidation(err):
		writeError(w, http.StatusBadRequest, err)
	case runtimeerr.IsTenantSuspended(err):
		writeError(w, http.StatusForbidden, err)
	case runtimeerr.IsDeniedByPolicy(err), runtimeerr.IsContractViolation(err):
		writeError(w, http.StatusForbidden, err)
	case runtimeerr.IsCapabilityUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
