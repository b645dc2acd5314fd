package models

import "time"

// MessageState tags the local lifecycle of a message. It is never sent to
// the server; it only exists to reconcile optimistic UI state.
type MessageState string

const (
	MessagePending   MessageState = "pending"
	MessageConfirmed MessageState = "confirmed"
)

// Message is one entry in the active group's message list as held by the
// sync client. A pending message carries a client-generated TempID and an
// empty ID until the server echo confirms it.
type Message struct {
	ID             string       `json:"id,omitempty"`
	TempID         string       `json:"tempId,omitempty"`
	GroupID        string       `json:"groupId"`
	SenderID       string       `json:"senderId"`
	SenderNickname string       `json:"senderNickname"`
	Body           string       `json:"body"`
	IsOfficial     bool         `json:"isOfficial"`
	CreatedAt      time.Time    `json:"createdAt"`
	State          MessageState `json:"state"`
	Failed         bool         `json:"failed,omitempty"`
}

// MessageRecord is the backend's wire shape for a message, shared by the
// group history endpoint and the push channel.
type MessageRecord struct {
	ID             string    `json:"id"`
	GroupID        string    `json:"groupId"`
	SenderID       string    `json:"senderId"`
	SenderNickname string    `json:"senderNickname"`
	Body           string    `json:"body"`
	IsOfficial     bool      `json:"isOfficial"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Message converts a server record into a confirmed list entry.
func (r MessageRecord) Message() Message {
	return Message{
		ID:             r.ID,
		GroupID:        r.GroupID,
		SenderID:       r.SenderID,
		SenderNickname: r.SenderNickname,
		Body:           r.Body,
		IsOfficial:     r.IsOfficial,
		CreatedAt:      r.CreatedAt,
		State:          MessageConfirmed,
	}
}
