package edge

import (
	"context"
	"net/http"
	"strings"

	"github.com/cityos/runtime/internal/smartcity/identity"
	"github.com/cityos/runtime/pkg/logger"
)

var publicPaths = map[string]struct{}{
	"/healthz":     {},
	"/metrics":     {},
	"/v1/sessions": {},
}

type ctxKey string

const ctxSessionKey ctxKey = "edge.session"

// sessionFromContext returns the identity.Session attached by wrapWithAuth.
func sessionFromContext(ctx context.Context) (identity.Session, bool) {
	s, ok := ctx.Value(ctxSessionKey).(identity.Session)
	return s, ok
}

// wrapWithAuth requires a valid bearer token for every path outside
// publicPaths, attaching the resolved session to the request context.
func wrapWithAuth(next http.Handler, ident *identity.Manager, log *logger.Logger) http.Handler {
	if ident == nil && log != nil {
		log.Warn("identity manager not configured; all authenticated edge routes will reject requests")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if _, ok := publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" || ident == nil {
			unauthorised(w)
			return
		}

		session, err := ident.Validate(r.Context(), token)
		if err != nil {
			unauthorised(w)
			return
		}

		ctx := context.WithValue(r.Context(), ctxSessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func unauthorised(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, errUnauthorised)
}
