package edge

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cityos/runtime/internal/runtime/streambus"
	"github.com/cityos/runtime/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const pingInterval = 30 * time.Second

// handleStream upgrades the connection and forwards the caller's tenant
// execution events as they are published to the streambus, until the
// client disconnects.
func handleStream(stream *streambus.Bus, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errUnauthorised)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx := r.Context()
		events, err := stream.Subscribe(ctx, session.TenantID)
		if err != nil {
			log.Warnf("stream subscribe failed for tenant %s: %v", session.TenantID, err)
			return
		}

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, open := <-events:
				if !open {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg.Payload); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
