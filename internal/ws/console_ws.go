package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"admin-console/internal/observability"
	"admin-console/internal/sessions"
)

// ConsoleWebSocketHandler upgrades console browser connections and feeds
// them into the hub.
type ConsoleWebSocketHandler struct {
	hub   *Hub
	store sessions.Store
}

// NewConsoleWebSocketHandler constructs a ConsoleWebSocketHandler.
func NewConsoleWebSocketHandler(hub *Hub, store sessions.Store) *ConsoleWebSocketHandler {
	return &ConsoleWebSocketHandler{hub: hub, store: store}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades and registers a console websocket connection.
func (h *ConsoleWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("admin-console/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	session, err := h.store.Get(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		AdminID:     session.AdminID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conn, info)

	observability.IncWSActive("console")
	observability.IncWSEvent("console", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.console", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "console",
				"event":       "ws_connect",
				"conn_id":     info.ConnID,
				"duration_ms": 0,
				"reason":      "",
			},
			"identity": map[string]interface{}{
				"admin_id":  info.AdminID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(meta.RequestID, traceID))

	// Keep the connection alive and clean up on close. Inbound frames from
	// the browser are discarded; the console surface is push-only.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(conn)
			observability.DecWSActive("console")
			observability.IncWSEvent("console", "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.console", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload: map[string]interface{}{
					"ws": map[string]interface{}{
						"kind":        "console",
						"event":       "ws_disconnect",
						"conn_id":     info.ConnID,
						"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
						"reason":      closeReason,
					},
					"identity": map[string]interface{}{
						"admin_id":  info.AdminID,
						"device_id": info.DeviceID,
						"ip":        info.IP,
					},
				},
			}, observability.BuildHeaders(meta.RequestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("console", "ws_error")
				}
				return
			}
		}
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}
