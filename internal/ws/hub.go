package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"admin-console/internal/chatsync"
	"admin-console/internal/models"
	"admin-console/internal/observability"
)

// ConsoleEvent is the envelope pushed to connected console browsers. It
// carries enough for the UI to raise desktop notifications (nickname, body,
// whether the sender is the local operator) without the sync core knowing
// about notifications at all.
type ConsoleEvent struct {
	Type       string                 `json:"type"`
	GroupID    string                 `json:"groupId,omitempty"`
	Message    *models.Message        `json:"message,omitempty"`
	MessageID  string                 `json:"messageId,omitempty"`
	FromSelf   bool                   `json:"fromSelf,omitempty"`
	Connection models.ConnectionState `json:"connection,omitempty"`
}

// FromSyncEvent converts a sync-client event into the console envelope.
func FromSyncEvent(event chatsync.Event) ConsoleEvent {
	return ConsoleEvent{
		Type:       string(event.Kind),
		GroupID:    event.GroupID,
		Message:    event.Message,
		MessageID:  event.MessageID,
		FromSelf:   event.FromSelf,
		Connection: event.Connection,
	}
}

// consoleClient pairs a connection's metadata with a write lock. gorilla
// connections do not support concurrent writers, so every frame to a given
// connection goes out under its mutex.
type consoleClient struct {
	info    ConnInfo
	writeMu sync.Mutex
}

// Hub maintains the console browser websocket connections that receive
// sync events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*consoleClient
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*consoleClient)}
}

// AddClient registers a console websocket connection.
func (h *Hub) AddClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &consoleClient{info: info}
}

// RemoveClient removes a console websocket connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// ClientCount reports the number of connected consoles.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast pushes an event to every connected console.
func (h *Hub) Broadcast(event ConsoleEvent) {
	type target struct {
		conn   *websocket.Conn
		client *consoleClient
	}

	h.mu.RLock()
	targets := make([]target, 0, len(h.clients))
	for conn, client := range h.clients {
		targets = append(targets, target{conn: conn, client: client})
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, tgt := range targets {
		tgt.client.writeMu.Lock()
		err := tgt.conn.WriteMessage(websocket.TextMessage, payload)
		tgt.client.writeMu.Unlock()
		if err != nil {
			log.Printf("websocket write error: %v", err)
			tgt.conn.Close()
			h.publishWSError(tgt.client.info, err)
			h.RemoveClient(tgt.conn)
		}
	}
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "console",
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"admin_id":  info.AdminID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.console", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("console", "ws_error")
}
