package channel

import "encoding/json"

// Event names on the backend duplex channel.
const (
	// client -> server
	EventJoinTopic   = "join-topic"
	EventLeaveTopic  = "leave-topic"
	EventSendMessage = "send-message"

	// server -> client
	EventMessageReceived = "message-received"
	EventMessageDeleted  = "message-deleted"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type topicRef struct {
	GroupID string `json:"groupId"`
}

// SendPayload publishes a new message. The server assigns the final id and
// createdAt; the client never sends its temporary id.
type SendPayload struct {
	GroupID        string `json:"groupId"`
	SenderID       string `json:"senderId"`
	SenderNickname string `json:"senderNickname"`
	Body           string `json:"body"`
	IsOfficial     bool   `json:"isOfficial"`
}

type deletedPayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
}
