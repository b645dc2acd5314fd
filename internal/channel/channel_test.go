package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"admin-console/internal/models"
)

type recordingHandler struct {
	received     chan models.MessageRecord
	deleted      chan [2]string
	connected    chan bool
	disconnected chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		received:     make(chan models.MessageRecord, 8),
		deleted:      make(chan [2]string, 8),
		connected:    make(chan bool, 8),
		disconnected: make(chan error, 8),
	}
}

func (h *recordingHandler) HandleMessageReceived(rec models.MessageRecord) { h.received <- rec }

func (h *recordingHandler) HandleMessageDeleted(groupID, messageID string) {
	h.deleted <- [2]string{groupID, messageID}
}

func (h *recordingHandler) HandleConnected(reconnected bool) { h.connected <- reconnected }

func (h *recordingHandler) HandleDisconnected(err error) { h.disconnected <- err }

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoServer accepts websocket connections and hands them to accept.
func echoServer(t *testing.T, accept func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accept(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestEmitBeforeConnect(t *testing.T) {
	ch := New("ws://localhost:1/ws", newRecordingHandler())
	require.ErrorIs(t, ch.JoinTopic("g1"), ErrNotConnected)
	require.Equal(t, models.ConnDisconnected, ch.State())
}

func TestConnectAndJoinTopic(t *testing.T) {
	frames := make(chan envelope, 8)
	srv := echoServer(t, func(conn *websocket.Conn) {
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- env
		}
	})

	handler := newRecordingHandler()
	ch := New(wsURL(srv), handler)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	require.Equal(t, models.ConnConnected, ch.State())
	require.False(t, <-handler.connected)

	require.NoError(t, ch.JoinTopic("g1"))
	require.NoError(t, ch.SendMessage(SendPayload{GroupID: "g1", SenderID: "admin-1", Body: "hi"}))
	require.NoError(t, ch.LeaveTopic("g1"))

	join := <-frames
	require.Equal(t, EventJoinTopic, join.Event)
	var ref topicRef
	require.NoError(t, json.Unmarshal(join.Data, &ref))
	require.Equal(t, "g1", ref.GroupID)

	send := <-frames
	require.Equal(t, EventSendMessage, send.Event)
	var payload SendPayload
	require.NoError(t, json.Unmarshal(send.Data, &payload))
	require.Equal(t, "hi", payload.Body)

	leave := <-frames
	require.Equal(t, EventLeaveTopic, leave.Event)
}

func TestConnectIsIdempotent(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	handler := newRecordingHandler()
	ch := New(wsURL(srv), handler)
	defer ch.Close()

	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Connect(context.Background()))
	require.Len(t, handler.connected, 1)
}

func TestDispatchPushEvents(t *testing.T) {
	serverConn := make(chan *websocket.Conn, 1)
	srv := echoServer(t, func(conn *websocket.Conn) {
		serverConn <- conn
	})

	handler := newRecordingHandler()
	ch := New(wsURL(srv), handler)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background()))

	conn := <-serverConn
	record := models.MessageRecord{ID: "m1", GroupID: "g1", SenderID: "u1", Body: "hello"}
	raw, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Event: EventMessageReceived, Data: raw}))

	select {
	case got := <-handler.received:
		require.Equal(t, "m1", got.ID)
		require.Equal(t, "hello", got.Body)
	case <-time.After(time.Second):
		t.Fatal("message-received was not dispatched")
	}

	raw, err = json.Marshal(map[string]string{"groupId": "g1", "messageId": "m1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Event: EventMessageDeleted, Data: raw}))

	select {
	case got := <-handler.deleted:
		require.Equal(t, [2]string{"g1", "m1"}, got)
	case <-time.After(time.Second):
		t.Fatal("message-deleted was not dispatched")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	serverConn := make(chan *websocket.Conn, 1)
	srv := echoServer(t, func(conn *websocket.Conn) {
		serverConn <- conn
	})

	handler := newRecordingHandler()
	ch := New(wsURL(srv), handler)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background()))

	conn := <-serverConn
	require.NoError(t, conn.WriteJSON(envelope{Event: "presence-changed"}))

	rec := models.MessageRecord{ID: "m1", GroupID: "g1"}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Event: EventMessageReceived, Data: raw}))

	got := <-handler.received
	require.Equal(t, "m1", got.ID)
	require.Empty(t, handler.deleted)
}

func TestReconnectAfterDrop(t *testing.T) {
	serverConn := make(chan *websocket.Conn, 2)
	srv := echoServer(t, func(conn *websocket.Conn) {
		serverConn <- conn
	})

	handler := newRecordingHandler()
	ch := New(wsURL(srv), handler)
	defer ch.Close()
	require.NoError(t, ch.Connect(context.Background()))
	require.False(t, <-handler.connected)

	first := <-serverConn
	first.Close()

	select {
	case <-handler.disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("drop was not surfaced")
	}

	select {
	case reconnected := <-handler.connected:
		require.True(t, reconnected)
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not reconnect")
	}
	require.Equal(t, models.ConnConnected, ch.State())

	// the replacement connection is live
	require.NoError(t, ch.JoinTopic("g1"))
}

func TestCloseStopsChannel(t *testing.T) {
	srv := echoServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch := New(wsURL(srv), newRecordingHandler())
	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Close())
	require.Equal(t, models.ConnDisconnected, ch.State())
	require.ErrorIs(t, ch.JoinTopic("g1"), ErrNotConnected)
}
