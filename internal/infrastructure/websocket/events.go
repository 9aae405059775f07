package websocket

import (
	"encoding/json"
	"time"

	"faindi/internal/domain/entity"
)

// Realtime event names
const (
	EventChatJoin    = "chat_join"
	EventMessage     = "message"
	EventReadMessage = "readmessage"
	EventNewChat     = "new_chat"
	EventNewMessage  = "new_message"
	EventMessageAck  = "message_ack"
	EventError       = "error"
)

// Envelope frames every event on the wire.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Event:     event,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

type ChatJoinData struct {
	UserID string `json:"user_id"`
}

// OutboundMessageData is emitted once attached media has durable URLs.
type OutboundMessageData struct {
	ClientID   string         `json:"client_id"`
	ToUserID   string         `json:"to_user_id"`
	FromUserID string         `json:"from_user_id"`
	Message    string         `json:"message"`
	Medias     []entity.Media `json:"medias"`
	CreatedAt  time.Time      `json:"created_at"`
}

type ReadMessageData struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
}

// InboundMessageData is a single message pushed by the server. Seq is the
// server-assigned per-conversation sequence number, 0 when absent.
type InboundMessageData struct {
	ClientID   string         `json:"client_id,omitempty"`
	FromUserID string         `json:"from_user_id"`
	ToUserID   string         `json:"to_user_id"`
	Message    string         `json:"message"`
	Medias     []entity.Media `json:"medias"`
	CreatedAt  time.Time      `json:"created_at"`
	Seq        int64          `json:"seq,omitempty"`
	From       *entity.User   `json:"from,omitempty"`
	IsSeller   bool           `json:"is_seller,omitempty"`
}

type MessageAckData struct {
	ClientID  string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
	Seq       int64     `json:"seq,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}
