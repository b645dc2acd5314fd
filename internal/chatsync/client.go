package chatsync

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"admin-console/internal/channel"
	"admin-console/internal/models"
	"admin-console/internal/observability"
)

var (
	// ErrNoActiveGroup rejects message operations before a group is selected.
	ErrNoActiveGroup = errors.New("no active group selected")
	// ErrMessageNotFound reports an id absent from the local list.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotConfirmed rejects edits of messages the server has not
	// acknowledged yet.
	ErrNotConfirmed = errors.New("message not confirmed yet")
	// ErrEmptyMessage rejects blank sends.
	ErrEmptyMessage = errors.New("message body is empty")
)

// pendingMatchWindow bounds how long after an optimistic send a server echo
// may still be matched against the pending entry.
const pendingMatchWindow = 5 * time.Second

// Duplex is the slice of the backend channel the sync client drives.
type Duplex interface {
	Connect(ctx context.Context) error
	JoinTopic(groupID string) error
	LeaveTopic(groupID string) error
	SendMessage(payload channel.SendPayload) error
	State() models.ConnectionState
}

// HistoryService is the request/response side of the group history endpoint.
type HistoryService interface {
	GroupMessages(ctx context.Context, groupID string) ([]models.MessageRecord, error)
	GroupMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
	UpdateMessage(ctx context.Context, messageID, body string) (models.MessageRecord, error)
	DeleteMessage(ctx context.Context, messageID string) error
	ClearGroupMessages(ctx context.Context, groupID string) error
}

// Event is published to subscribers; notification side effects (desktop
// alerts, console fan-out) are layered on top of these instead of living
// inside the sync core.
type Event struct {
	Kind       EventKind
	GroupID    string
	Message    *models.Message
	MessageID  string
	FromSelf   bool
	Connection models.ConnectionState
}

type EventKind string

const (
	EventMessage    EventKind = "message"
	EventDeleted    EventKind = "message_deleted"
	EventCleared    EventKind = "cleared"
	EventConnection EventKind = "connection"
)

// Client keeps the locally-held message list for exactly one active group
// consistent with the server-authoritative stream: it reconciles push
// events with optimistic local sends, merges seed fetches with pushes that
// raced them, and survives reconnects and group switches.
//
// Snapshot is the view-model handed to the presentation layer; the
// presentation layer never mutates client state directly.
type Client struct {
	duplex  Duplex
	history HistoryService
	self    models.Identity

	mu       sync.Mutex
	groupID  string
	epoch    uint64
	messages []models.Message
	members  []models.GroupMember
	ready    bool
	subs     []func(Event)

	now func() time.Time
}

// New constructs a sync client for the given operator identity.
func New(duplex Duplex, history HistoryService, self models.Identity) *Client {
	return &Client{
		duplex:  duplex,
		history: history,
		self:    self,
		now:     time.Now,
	}
}

// Subscribe registers an observer for sync events. Observers are invoked
// synchronously after the state change; they must not call back into the
// client.
func (c *Client) Subscribe(fn func(Event)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// SelectGroup switches the active group: the previous topic is left, local
// state is cleared, the new topic is joined and a seed fetch populates
// messages and members in the background. Passing an empty id deselects.
//
// The channel is established lazily here on first use.
func (c *Client) SelectGroup(ctx context.Context, groupID string) error {
	c.mu.Lock()
	prev := c.groupID
	c.epoch++
	epoch := c.epoch
	c.groupID = groupID
	c.messages = nil
	c.members = nil
	c.ready = false
	c.mu.Unlock()

	if prev != "" {
		if err := c.duplex.LeaveTopic(prev); err != nil && !errors.Is(err, channel.ErrNotConnected) {
			log.Printf("chatsync: leave topic %s: %v", prev, err)
		}
	}
	if groupID == "" {
		return nil
	}

	if err := c.duplex.Connect(ctx); err != nil {
		// The channel retries on its own; the seed below still runs so
		// history is shown even while the push stream is down.
		log.Printf("chatsync: channel connect: %v", err)
	}
	if err := c.duplex.JoinTopic(groupID); err != nil && !errors.Is(err, channel.ErrNotConnected) {
		log.Printf("chatsync: join topic %s: %v", groupID, err)
	}

	go c.seed(groupID, epoch)
	return nil
}

// ActiveGroup reports the currently selected group id.
func (c *Client) ActiveGroup() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupID
}

// seed fetches the full current message and member lists and merges them
// into local state. Push events that arrived before the response are left
// untouched; the merge is by id, never a wholesale replace. A result that
// resolves after the group changed again is discarded by epoch comparison.
func (c *Client) seed(groupID string, epoch uint64) {
	ctx := context.Background()

	records, err := c.history.GroupMessages(ctx, groupID)
	if err != nil {
		log.Printf("chatsync: seed messages for group %s: %v", groupID, err)
		observability.IncSyncReconciliation("seed_failed")
		return
	}
	members, err := c.history.GroupMembers(ctx, groupID)
	if err != nil {
		log.Printf("chatsync: seed members for group %s: %v", groupID, err)
		members = nil
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		observability.IncSyncReconciliation("seed_stale")
		return
	}
	for _, record := range records {
		if record.GroupID != groupID {
			continue
		}
		c.insertLocked(record.Message())
	}
	if members != nil {
		c.members = members
	}
	c.ready = true
	c.mu.Unlock()
	observability.IncSyncReconciliation("seeded")
}

// SendMessage appends an optimistic pending entry and publishes it on the
// channel. The server echo later promotes the entry; if the channel is down
// the entry is marked failed in place, never silently dropped, and the
// operator may retry with RetrySend.
func (c *Client) SendMessage(body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}

	c.mu.Lock()
	groupID := c.groupID
	if groupID == "" {
		c.mu.Unlock()
		return models.Message{}, ErrNoActiveGroup
	}
	msg := models.Message{
		TempID:         uuid.NewString(),
		GroupID:        groupID,
		SenderID:       c.self.AdminID,
		SenderNickname: c.self.Nickname,
		Body:           body,
		IsOfficial:     true,
		CreatedAt:      c.now(),
		State:          models.MessagePending,
	}
	c.insertLocked(msg)
	c.mu.Unlock()

	return c.publish(msg)
}

// RetrySend re-attempts a failed optimistic entry. Its timestamp is
// refreshed so the echo-match window starts over.
func (c *Client) RetrySend(tempID string) (models.Message, error) {
	c.mu.Lock()
	idx := -1
	for i, m := range c.messages {
		if m.TempID == tempID && m.Failed {
			idx = i
			break
		}
	}
	if idx == -1 {
		c.mu.Unlock()
		return models.Message{}, ErrMessageNotFound
	}
	msg := c.messages[idx]
	msg.Failed = false
	msg.CreatedAt = c.now()
	c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	c.insertLocked(msg)
	c.mu.Unlock()

	return c.publish(msg)
}

func (c *Client) publish(msg models.Message) (models.Message, error) {
	err := c.duplex.SendMessage(channel.SendPayload{
		GroupID:        msg.GroupID,
		SenderID:       msg.SenderID,
		SenderNickname: msg.SenderNickname,
		Body:           msg.Body,
		IsOfficial:     msg.IsOfficial,
	})
	if err != nil {
		c.mu.Lock()
		for i := range c.messages {
			if c.messages[i].TempID == msg.TempID {
				c.messages[i].Failed = true
				break
			}
		}
		c.mu.Unlock()
		observability.IncSyncReconciliation("send_failed")
		msg.Failed = true
		return msg, err
	}
	return msg, nil
}

// EditMessage replaces a message body through the history endpoint. Edits
// are not optimistic: unlike sends there is no push echo to reconcile a
// failure against, so the local body changes only after the server
// confirms.
func (c *Client) EditMessage(ctx context.Context, messageID, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}
	// Pending entries carry an empty server id; an empty messageID must not
	// match them.
	if messageID == "" {
		return models.Message{}, ErrMessageNotFound
	}

	c.mu.Lock()
	found := false
	for _, m := range c.messages {
		if m.ID == messageID {
			if m.State != models.MessageConfirmed {
				c.mu.Unlock()
				return models.Message{}, ErrNotConfirmed
			}
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return models.Message{}, ErrMessageNotFound
	}

	record, err := c.history.UpdateMessage(ctx, messageID, body)
	if err != nil {
		return models.Message{}, err
	}

	newBody := record.Body
	if newBody == "" {
		newBody = body
	}

	c.mu.Lock()
	var updated models.Message
	found = false
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			c.messages[i].Body = newBody
			updated = c.messages[i]
			found = true
			break
		}
	}
	c.mu.Unlock()
	// The entry may have been deleted while the update was in flight.
	if !found {
		return models.Message{}, ErrMessageNotFound
	}
	return updated, nil
}

// DeleteMessage removes a message through the history endpoint and drops it
// locally. The backend fans a delete notification out to other subscribers;
// applying that push later is a no-op because the id is already absent.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if err := c.history.DeleteMessage(ctx, messageID); err != nil {
		return err
	}

	c.mu.Lock()
	c.removeLocked(messageID)
	c.mu.Unlock()
	return nil
}

// ClearAll removes every message in the active group and empties the local
// list unconditionally on success.
func (c *Client) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	groupID := c.groupID
	c.mu.Unlock()
	if groupID == "" {
		return ErrNoActiveGroup
	}

	if err := c.history.ClearGroupMessages(ctx, groupID); err != nil {
		return err
	}

	c.mu.Lock()
	var subs []func(Event)
	if c.groupID == groupID {
		c.messages = nil
		subs = append(subs, c.subs...)
	}
	c.mu.Unlock()

	c.notify(subs, Event{Kind: EventCleared, GroupID: groupID})
	return nil
}

// Snapshot is the ordered view-model for the presentation layer.
type Snapshot struct {
	GroupID    string                 `json:"groupId"`
	Ready      bool                   `json:"ready"`
	Connection models.ConnectionState `json:"connection"`
	Messages   []models.Message       `json:"messages"`
	Members    []models.GroupMember   `json:"members"`
}

// Snapshot copies the current state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		GroupID:    c.groupID,
		Ready:      c.ready,
		Connection: c.duplex.State(),
		Messages:   make([]models.Message, len(c.messages)),
		Members:    make([]models.GroupMember, len(c.members)),
	}
	copy(snap.Messages, c.messages)
	copy(snap.Members, c.members)
	return snap
}

// HandleMessageReceived reconciles a pushed message into the list. Events
// for any group other than the active one are dropped; that filter covers
// the race where a topic-leave is still in flight when an old topic's push
// arrives.
func (c *Client) HandleMessageReceived(rec models.MessageRecord) {
	c.mu.Lock()
	if c.groupID == "" || rec.GroupID != c.groupID {
		c.mu.Unlock()
		observability.IncSyncReconciliation("dropped_inactive")
		return
	}

	msg := rec.Message()
	outcome := "appended"
	switch {
	case c.containsLocked(msg.ID):
		outcome = "duplicate"
	case c.promotePendingLocked(msg):
		outcome = "promoted"
	default:
		c.insertLocked(msg)
	}
	// A push beating the seed response still ends the loading placeholder.
	c.ready = true
	fromSelf := rec.SenderID == c.self.AdminID
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	observability.IncSyncReconciliation(outcome)
	if outcome == "duplicate" {
		return
	}
	c.notify(subs, Event{Kind: EventMessage, GroupID: rec.GroupID, Message: &msg, FromSelf: fromSelf})
}

// HandleMessageDeleted removes a message by id. Removing an id that is
// already absent is a no-op.
func (c *Client) HandleMessageDeleted(groupID, messageID string) {
	c.mu.Lock()
	if c.groupID == "" || groupID != c.groupID {
		c.mu.Unlock()
		return
	}
	removed := c.removeLocked(messageID)
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	if removed {
		c.notify(subs, Event{Kind: EventDeleted, GroupID: groupID, MessageID: messageID})
	}
}

// HandleConnected re-subscribes to the active group and re-seeds its list.
// Events missed while disconnected are not recoverable any other way, so
// confirmed entries are rebuilt from the fresh seed; locally pending and
// failed entries are kept so the retry affordance survives the drop.
func (c *Client) HandleConnected(reconnected bool) {
	c.mu.Lock()
	groupID := c.groupID
	var epoch uint64
	if groupID != "" {
		c.epoch++
		epoch = c.epoch
		kept := make([]models.Message, 0, len(c.messages))
		for _, m := range c.messages {
			if m.State == models.MessagePending {
				kept = append(kept, m)
			}
		}
		c.messages = kept
		c.ready = false
	}
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	if groupID != "" {
		if err := c.duplex.JoinTopic(groupID); err != nil {
			log.Printf("chatsync: rejoin topic %s: %v", groupID, err)
		}
		go c.seed(groupID, epoch)
	}
	c.notify(subs, Event{Kind: EventConnection, Connection: c.duplex.State()})
	if reconnected {
		log.Printf("chatsync: channel reconnected, re-seeding group %q", groupID)
	}
}

// HandleDisconnected surfaces the connection drop to subscribers. The
// channel reconnects on its own; operations attempted meanwhile are
// rejected with ErrNotConnected.
func (c *Client) HandleDisconnected(err error) {
	c.mu.Lock()
	subs := append([]func(Event){}, c.subs...)
	c.mu.Unlock()

	c.notify(subs, Event{Kind: EventConnection, Connection: models.ConnDisconnected})
}

func (c *Client) notify(subs []func(Event), event Event) {
	for _, fn := range subs {
		fn(event)
	}
}

// containsLocked reports whether a server id is already present. Pending
// entries have no server id yet and never match.
func (c *Client) containsLocked(id string) bool {
	if id == "" {
		return false
	}
	for _, m := range c.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// insertLocked places a message by createdAt ascending, ties broken by
// arrival order. Returns false when the id is already present, keeping the
// existing entry untouched.
func (c *Client) insertLocked(msg models.Message) bool {
	if c.containsLocked(msg.ID) {
		return false
	}
	i := len(c.messages)
	for ; i > 0; i-- {
		if !c.messages[i-1].CreatedAt.After(msg.CreatedAt) {
			break
		}
	}
	c.messages = append(c.messages, models.Message{})
	copy(c.messages[i+1:], c.messages[i:])
	c.messages[i] = msg
	return true
}

// promotePendingLocked replaces the oldest matching pending entry with the
// confirmed echo. The server echoes no client correlation id, so the match
// is best-effort by sender and body within a short window; two identical
// texts sent quickly can misfire. An echo that matches nothing is appended
// by the caller instead of risking a wrong merge.
func (c *Client) promotePendingLocked(msg models.Message) bool {
	now := c.now()
	for i, m := range c.messages {
		if m.State != models.MessagePending || m.Failed || m.ID != "" {
			continue
		}
		if m.SenderID != msg.SenderID || m.Body != msg.Body {
			continue
		}
		if now.Sub(m.CreatedAt) > pendingMatchWindow {
			continue
		}
		c.messages = append(c.messages[:i], c.messages[i+1:]...)
		c.insertLocked(msg)
		return true
	}
	return false
}

func (c *Client) removeLocked(messageID string) bool {
	for i, m := range c.messages {
		if m.ID == messageID {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return true
		}
	}
	return false
}
