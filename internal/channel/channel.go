package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"admin-console/internal/models"
	"admin-console/internal/observability"
)

// ErrNotConnected rejects emits attempted while the channel is down.
// Callers decide whether to surface it or mark local state failed.
var ErrNotConnected = errors.New("channel not connected")

var errClosed = errors.New("channel closed")

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 15 * time.Second
)

// Handler receives push events and connection transitions. All methods are
// invoked from the channel's read goroutine, one event at a time.
type Handler interface {
	HandleMessageReceived(rec models.MessageRecord)
	HandleMessageDeleted(groupID, messageID string)
	HandleConnected(reconnected bool)
	HandleDisconnected(err error)
}

// Channel is the process-wide duplex connection to the backend's real-time
// transport. It is established lazily on first use, reused across group
// switches, and reconnects itself with capped exponential backoff after a
// drop.
type Channel struct {
	url     string
	dialer  *websocket.Dialer
	handler Handler

	mu           sync.Mutex
	conn         *websocket.Conn
	state        models.ConnectionState
	gen          int
	closed       bool
	reconnecting bool
}

// New constructs a channel that will dial url. No connection is made until
// Connect is called.
func New(url string, handler Handler) *Channel {
	return &Channel{
		url:     url,
		handler: handler,
		state:   models.ConnDisconnected,
		dialer:  &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// State reports the current connection state.
func (c *Channel) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection if it is not already up. Safe to call
// repeatedly; concurrent pushes start flowing once the dial resolves. On
// dial failure the channel keeps retrying in the background.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClosed
	}
	if c.state != models.ConnDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = models.ConnConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = models.ConnDisconnected
		c.mu.Unlock()
		go c.reconnectLoop()
		return err
	}

	c.install(conn)
	c.handler.HandleConnected(false)
	return nil
}

// Close shuts the channel down permanently.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.state = models.ConnDisconnected
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// JoinTopic subscribes to a group's event stream.
func (c *Channel) JoinTopic(groupID string) error {
	return c.emit(EventJoinTopic, topicRef{GroupID: groupID})
}

// LeaveTopic unsubscribes from a group's event stream.
func (c *Channel) LeaveTopic(groupID string) error {
	return c.emit(EventLeaveTopic, topicRef{GroupID: groupID})
}

// SendMessage publishes a new message to the active group's topic. The
// server echoes it back to all subscribers including the sender.
func (c *Channel) SendMessage(payload SendPayload) error {
	return c.emit(EventSendMessage, payload)
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, span := otel.Tracer("admin-console/channel").Start(ctx, "channel.dial")
	defer span.End()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	return conn, err
}

func (c *Channel) install(conn *websocket.Conn) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = models.ConnConnected
	c.mu.Unlock()

	go c.readLoop(conn, gen)
}

func (c *Channel) emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.ConnConnected || c.conn == nil {
		return ErrNotConnected
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(envelope{Event: event, Data: payload}); err != nil {
		return err
	}
	observability.IncChannelEvent("out", event)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen || c.closed
			if !stale {
				c.conn = nil
				c.state = models.ConnDisconnected
			}
			c.mu.Unlock()
			conn.Close()
			if stale {
				return
			}
			log.Printf("channel: connection dropped: %v", err)
			c.handler.HandleDisconnected(err)
			go c.reconnectLoop()
			return
		}
		c.dispatch(raw)
	}
}

func (c *Channel) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("channel: malformed event: %v", err)
		return
	}
	observability.IncChannelEvent("in", env.Event)

	switch env.Event {
	case EventMessageReceived:
		var rec models.MessageRecord
		if err := json.Unmarshal(env.Data, &rec); err != nil {
			log.Printf("channel: malformed %s payload: %v", env.Event, err)
			return
		}
		c.handler.HandleMessageReceived(rec)
	case EventMessageDeleted:
		var payload deletedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			log.Printf("channel: malformed %s payload: %v", env.Event, err)
			return
		}
		c.handler.HandleMessageDeleted(payload.GroupID, payload.MessageID)
	default:
		log.Printf("channel: ignoring unknown event %q", env.Event)
	}
}

func (c *Channel) reconnectLoop() {
	c.mu.Lock()
	if c.reconnecting || c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 30 * time.Second
	policy.MaxElapsedTime = 0 // retry until Close

	attempt := func() error {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return backoff.Permanent(errClosed)
		}
		c.state = models.ConnConnecting
		c.mu.Unlock()

		conn, err := c.dial(context.Background())
		if err != nil {
			c.mu.Lock()
			c.state = models.ConnDisconnected
			c.mu.Unlock()
			return err
		}
		c.install(conn)
		return nil
	}

	err := backoff.Retry(attempt, policy)

	c.mu.Lock()
	c.reconnecting = false
	c.mu.Unlock()

	if err != nil {
		return
	}
	observability.IncChannelReconnect()
	c.handler.HandleConnected(true)
}
