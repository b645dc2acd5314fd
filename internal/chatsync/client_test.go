package chatsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"admin-console/internal/channel"
	"admin-console/internal/models"
)

type fakeDuplex struct {
	mu      sync.Mutex
	joined  []string
	left    []string
	sent    []channel.SendPayload
	sendErr error
	state   models.ConnectionState
}

func newFakeDuplex() *fakeDuplex {
	return &fakeDuplex{state: models.ConnConnected}
}

func (d *fakeDuplex) Connect(ctx context.Context) error { return nil }

func (d *fakeDuplex) JoinTopic(groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.joined = append(d.joined, groupID)
	return nil
}

func (d *fakeDuplex) LeaveTopic(groupID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.left = append(d.left, groupID)
	return nil
}

func (d *fakeDuplex) SendMessage(payload channel.SendPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
	d.sent = append(d.sent, payload)
	return nil
}

func (d *fakeDuplex) State() models.ConnectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *fakeDuplex) setSendErr(err error) {
	d.mu.Lock()
	d.sendErr = err
	d.mu.Unlock()
}

func (d *fakeDuplex) sentPayloads() []channel.SendPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]channel.SendPayload, len(d.sent))
	copy(out, d.sent)
	return out
}

type fakeHistory struct {
	mu       sync.Mutex
	messages map[string][]models.MessageRecord
	members  map[string][]models.GroupMember
	// when set, GroupMessages blocks until the gate closes
	gate chan struct{}
	// when set, invoked while UpdateMessage is in flight
	onUpdate func()
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		messages: make(map[string][]models.MessageRecord),
		members:  make(map[string][]models.GroupMember),
	}
}

func (h *fakeHistory) GroupMessages(ctx context.Context, groupID string) ([]models.MessageRecord, error) {
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	if gate != nil {
		<-gate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messages[groupID], nil
}

func (h *fakeHistory) GroupMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.members[groupID], nil
}

func (h *fakeHistory) UpdateMessage(ctx context.Context, messageID, body string) (models.MessageRecord, error) {
	if h.onUpdate != nil {
		h.onUpdate()
	}
	return models.MessageRecord{ID: messageID, Body: body}, nil
}

func (h *fakeHistory) DeleteMessage(ctx context.Context, messageID string) error { return nil }

func (h *fakeHistory) ClearGroupMessages(ctx context.Context, groupID string) error { return nil }

func (h *fakeHistory) setMessages(groupID string, records []models.MessageRecord) {
	h.mu.Lock()
	h.messages[groupID] = records
	h.mu.Unlock()
}

var testIdentity = models.Identity{AdminID: "admin-1", Nickname: "SnoRelax Team"}

func record(id, groupID, senderID, body string, at time.Time) models.MessageRecord {
	return models.MessageRecord{
		ID:             id,
		GroupID:        groupID,
		SenderID:       senderID,
		SenderNickname: "someone",
		Body:           body,
		CreatedAt:      at,
	}
}

func selectAndWait(t *testing.T, client *Client, groupID string) {
	t.Helper()
	require.NoError(t, client.SelectGroup(context.Background(), groupID))
	require.Eventually(t, func() bool {
		return client.Snapshot().Ready
	}, time.Second, 5*time.Millisecond)
}

func TestSendMessageWithoutGroup(t *testing.T) {
	client := New(newFakeDuplex(), newFakeHistory(), testIdentity)

	_, err := client.SendMessage("hello")
	require.ErrorIs(t, err, ErrNoActiveGroup)
}

func TestSendMessageRejectsBlank(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	_, err := client.SendMessage("   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Empty(t, duplex.sentPayloads())
}

func TestSendMessageOptimisticPending(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	msg, err := client.SendMessage("  hello there  ")
	require.NoError(t, err)
	require.NotEmpty(t, msg.TempID)
	require.Empty(t, msg.ID)
	require.Equal(t, models.MessagePending, msg.State)
	require.Equal(t, "hello there", msg.Body)
	require.True(t, msg.IsOfficial)

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, models.MessagePending, snap.Messages[0].State)

	sent := duplex.sentPayloads()
	require.Len(t, sent, 1)
	require.Equal(t, "hello there", sent[0].Body)
	require.Equal(t, "admin-1", sent[0].SenderID)
	require.Equal(t, "g1", sent[0].GroupID)
}

func TestEchoPromotesPending(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	_, err := client.SendMessage("hello")
	require.NoError(t, err)

	client.HandleMessageReceived(record("m1", "g1", "admin-1", "hello", time.Now()))

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Equal(t, "m1", snap.Messages[0].ID)
	require.Equal(t, models.MessageConfirmed, snap.Messages[0].State)
}

func TestEchoOutsideWindowAppends(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	base := time.Now()
	client.now = func() time.Time { return base }
	_, err := client.SendMessage("hello")
	require.NoError(t, err)

	// the echo resolves well after the match window
	client.now = func() time.Time { return base.Add(10 * time.Second) }
	client.HandleMessageReceived(record("m1", "g1", "admin-1", "hello", base.Add(10*time.Second)))

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.Equal(t, models.MessagePending, snap.Messages[0].State)
	require.Equal(t, "m1", snap.Messages[1].ID)
}

func TestPushFromOtherSenderAppends(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	_, err := client.SendMessage("hello")
	require.NoError(t, err)

	client.HandleMessageReceived(record("m1", "g1", "user-9", "hello", time.Now()))

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 2)
}

func TestDuplicatePushIgnored(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	var events []Event
	client.Subscribe(func(e Event) { events = append(events, e) })

	rec := record("m1", "g1", "user-9", "hi", time.Now())
	client.HandleMessageReceived(rec)
	client.HandleMessageReceived(rec)

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.Len(t, events, 1)
}

func TestPushForInactiveGroupDropped(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	client.HandleMessageReceived(record("m1", "g2", "user-9", "hi", time.Now()))

	require.Empty(t, client.Snapshot().Messages)
}

func TestDeleteIsIdempotent(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	client.HandleMessageReceived(record("m1", "g1", "user-9", "hi", time.Now()))

	var deleted int
	client.Subscribe(func(e Event) {
		if e.Kind == EventDeleted {
			deleted++
		}
	})

	client.HandleMessageDeleted("g1", "m1")
	client.HandleMessageDeleted("g1", "m1")

	require.Empty(t, client.Snapshot().Messages)
	require.Equal(t, 1, deleted)
}

func TestSeedMergesWithEarlyPush(t *testing.T) {
	duplex := newFakeDuplex()
	history := newFakeHistory()
	gate := make(chan struct{})
	history.gate = gate

	base := time.Now().Truncate(time.Second)
	history.setMessages("g1", []models.MessageRecord{
		record("m1", "g1", "user-9", "first", base),
		record("m2", "g1", "user-9", "second", base.Add(time.Second)),
	})

	client := New(duplex, history, testIdentity)
	require.NoError(t, client.SelectGroup(context.Background(), "g1"))

	// a push for a message the seed will also contain lands first
	client.HandleMessageReceived(record("m2", "g1", "user-9", "second", base.Add(time.Second)))

	close(gate)
	require.Eventually(t, func() bool {
		return len(client.Snapshot().Messages) == 2
	}, time.Second, 5*time.Millisecond)

	snap := client.Snapshot()
	require.Equal(t, "m1", snap.Messages[0].ID)
	require.Equal(t, "m2", snap.Messages[1].ID)
	require.True(t, snap.Ready)
}

func TestStaleSeedDiscardedAfterSwitch(t *testing.T) {
	duplex := newFakeDuplex()
	history := newFakeHistory()
	gate := make(chan struct{})
	history.gate = gate
	history.setMessages("g1", []models.MessageRecord{
		record("m1", "g1", "user-9", "old group", time.Now()),
	})

	client := New(duplex, history, testIdentity)
	require.NoError(t, client.SelectGroup(context.Background(), "g1"))

	// switch before the first seed resolves, then release both fetches
	require.NoError(t, client.SelectGroup(context.Background(), "g2"))
	close(gate)

	require.Eventually(t, func() bool {
		return client.Snapshot().Ready
	}, time.Second, 5*time.Millisecond)

	snap := client.Snapshot()
	require.Equal(t, "g2", snap.GroupID)
	require.Empty(t, snap.Messages)
}

func TestSwitchClearsStateAndTopics(t *testing.T) {
	duplex := newFakeDuplex()
	history := newFakeHistory()
	history.setMessages("g1", []models.MessageRecord{
		record("m1", "g1", "user-9", "hi", time.Now()),
	})

	client := New(duplex, history, testIdentity)
	selectAndWait(t, client, "g1")
	require.Len(t, client.Snapshot().Messages, 1)

	selectAndWait(t, client, "g2")

	snap := client.Snapshot()
	require.Empty(t, snap.Messages)
	require.Equal(t, []string{"g1"}, duplex.left)
	require.Equal(t, []string{"g1", "g2"}, duplex.joined)
}

func TestSendFailureMarksFailedAndRetryRecovers(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	duplex.setSendErr(channel.ErrNotConnected)
	msg, err := client.SendMessage("hello")
	require.ErrorIs(t, err, channel.ErrNotConnected)
	require.True(t, msg.Failed)

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.True(t, snap.Messages[0].Failed)

	duplex.setSendErr(nil)
	retried, err := client.RetrySend(msg.TempID)
	require.NoError(t, err)
	require.False(t, retried.Failed)
	require.Len(t, duplex.sentPayloads(), 1)

	snap = client.Snapshot()
	require.Len(t, snap.Messages, 1)
	require.False(t, snap.Messages[0].Failed)
}

func TestRetryUnknownTempID(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	_, err := client.RetrySend("nope")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestReconnectReseedsAndKeepsPending(t *testing.T) {
	duplex := newFakeDuplex()
	history := newFakeHistory()
	client := New(duplex, history, testIdentity)
	selectAndWait(t, client, "g1")

	client.HandleMessageReceived(record("m1", "g1", "user-9", "before drop", time.Now()))

	duplex.setSendErr(channel.ErrNotConnected)
	failed, err := client.SendMessage("while down")
	require.ErrorIs(t, err, channel.ErrNotConnected)

	// the server kept m1 and gained m2 while we were away
	history.setMessages("g1", []models.MessageRecord{
		record("m1", "g1", "user-9", "before drop", time.Now().Add(-time.Minute)),
		record("m2", "g1", "user-9", "missed", time.Now()),
	})

	duplex.setSendErr(nil)
	client.HandleConnected(true)
	require.Eventually(t, func() bool {
		return client.Snapshot().Ready
	}, time.Second, 5*time.Millisecond)

	// the kept pending entry sorts by createdAt among the seeded ones, so
	// collect ids across the whole list
	snap := client.Snapshot()
	require.Len(t, snap.Messages, 3)
	var ids []string
	var keptPending bool
	for _, m := range snap.Messages {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
		if m.TempID == failed.TempID {
			keptPending = true
		}
	}
	require.ElementsMatch(t, []string{"m1", "m2"}, ids)
	require.True(t, keptPending)
	require.Equal(t, []string{"g1", "g1"}, duplex.joined)
}

func TestEditRequiresConfirmed(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	msg, err := client.SendMessage("draft")
	require.NoError(t, err)

	_, err = client.EditMessage(context.Background(), msg.ID, "new body")
	require.ErrorIs(t, err, ErrMessageNotFound)

	client.HandleMessageReceived(record("m1", "g1", "admin-1", "draft", time.Now()))

	updated, err := client.EditMessage(context.Background(), "m1", "new body")
	require.NoError(t, err)
	require.Equal(t, "new body", updated.Body)
	require.Equal(t, "new body", client.Snapshot().Messages[0].Body)
}

func TestEditMessageRemovedDuringUpdate(t *testing.T) {
	duplex := newFakeDuplex()
	history := newFakeHistory()
	client := New(duplex, history, testIdentity)
	selectAndWait(t, client, "g1")

	client.HandleMessageReceived(record("m1", "g1", "admin-1", "old body", time.Now()))

	// a delete push lands while the update request is in flight
	history.onUpdate = func() { client.HandleMessageDeleted("g1", "m1") }

	_, err := client.EditMessage(context.Background(), "m1", "new body")
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.Empty(t, client.Snapshot().Messages)
}

func TestClearAll(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	client.HandleMessageReceived(record("m1", "g1", "user-9", "hi", time.Now()))

	var cleared int
	client.Subscribe(func(e Event) {
		if e.Kind == EventCleared {
			cleared++
		}
	})

	require.NoError(t, client.ClearAll(context.Background()))
	require.Empty(t, client.Snapshot().Messages)
	require.Equal(t, 1, cleared)
}

func TestClearAllWithoutGroup(t *testing.T) {
	client := New(newFakeDuplex(), newFakeHistory(), testIdentity)
	require.ErrorIs(t, client.ClearAll(context.Background()), ErrNoActiveGroup)
}

func TestOrderingByCreatedAt(t *testing.T) {
	duplex := newFakeDuplex()
	client := New(duplex, newFakeHistory(), testIdentity)
	selectAndWait(t, client, "g1")

	base := time.Now().Truncate(time.Second)
	client.HandleMessageReceived(record("m3", "g1", "user-9", "third", base.Add(2*time.Second)))
	client.HandleMessageReceived(record("m1", "g1", "user-9", "first", base))
	client.HandleMessageReceived(record("m2", "g1", "user-9", "second", base.Add(time.Second)))

	snap := client.Snapshot()
	require.Len(t, snap.Messages, 3)
	require.Equal(t, "m1", snap.Messages[0].ID)
	require.Equal(t, "m2", snap.Messages[1].ID)
	require.Equal(t, "m3", snap.Messages[2].ID)
}

func TestEarlyPushEndsLoading(t *testing.T) {
	duplex := newFakeDuplex()
	history := newFakeHistory()
	gate := make(chan struct{})
	history.gate = gate

	client := New(duplex, history, testIdentity)
	require.NoError(t, client.SelectGroup(context.Background(), "g1"))
	require.False(t, client.Snapshot().Ready)

	client.HandleMessageReceived(record("m1", "g1", "user-9", "hi", time.Now()))
	require.True(t, client.Snapshot().Ready)

	close(gate)
}
