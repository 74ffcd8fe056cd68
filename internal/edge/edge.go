// Package edge is the Experience Edge: the runtime's outward-facing HTTP
// and WebSocket surface. It turns authenticated HTTP requests into
// dispatcher Submit calls and forwards whatever is published to the
// caller's streambus tenant topic over gorilla/websocket (the dispatcher
// publishes nothing there).
package edge

import (
	"context"
	"net/http"
	"time"

	core "github.com/cityos/runtime/internal/app/core/service"
	"github.com/cityos/runtime/internal/app/system"
	"github.com/cityos/runtime/internal/obs/metrics"
	"github.com/cityos/runtime/internal/runtime/dispatcher"
	"github.com/cityos/runtime/internal/runtime/streambus"
	"github.com/cityos/runtime/internal/smartcity/identity"
	"github.com/cityos/runtime/pkg/logger"
)

// Service exposes the Experience Edge and fits into the system manager
// lifecycle.
type Service struct {
	addr    string
	server  *http.Server
	handler http.Handler
	log     *logger.Logger
}

// NewService builds the Experience Edge's HTTP handler over d (for
// submitting intents) and stream (for subscribing to tenant execution
// events), gated by identity for authentication. descriptors, if non-nil,
// backs the system introspection endpoint with the caller's live service
// inventory (typically system.Manager.Descriptors).
func NewService(addr string, d *dispatcher.Dispatcher, stream *streambus.Bus, ident *identity.Manager, descriptors func() []core.Descriptor, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("edge")
	}

	handler := newRouter(d, stream, ident, descriptors, log)
	handler = wrapWithAuth(handler, ident, log)
	handler = wrapWithCORS(handler)
	handler = metrics.InstrumentHandler(handler)

	return &Service{addr: addr, handler: handler, log: log}
}

var _ system.Service = (*Service)(nil)
var _ system.DescriptorProvider = (*Service)(nil)

func (s *Service) Name() string { return "edge" }

func (s *Service) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.Name(), Domain: "experience-edge", Layer: core.LayerIngress}
}

func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived.
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("edge http server error: %v", err)
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// wrapWithCORS allows cross-origin requests from a browser client and
// short-circuits preflight requests.
func wrapWithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
