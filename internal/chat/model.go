package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ---------------------------------------------
// 📡 Wire events
// ---------------------------------------------

const (
	// client -> server
	EventJoin              = "join"
	EventPrivateMessage    = "private_message"
	EventMarkAsSeen        = "mark_as_seen"
	EventGetUnreadMessages = "get_unread_messages"
	EventGetOnlineUsers    = "get_online_users"

	// server -> client
	EventReceiveMessage       = "receive_message"
	EventMessageSent          = "message_sent"
	EventMessagesMarkedAsSeen = "messages_marked_as_seen"
	EventUnreadMessages       = "unread_messages"
	EventUserStatus           = "user_status"
	EventError                = "error"
)

var (
	// ErrSessionClosed is returned by Push once the session is shutting down.
	ErrSessionClosed = errors.New("session closed")
	// ErrSendQueueFull is returned when a slow session is dropped.
	ErrSendQueueFull = errors.New("send queue full")
	// ErrForbidden means an event named an identity other than the authenticated one.
	ErrForbidden = errors.New("identity mismatch")
	// ErrBadPayload means an event could not be decoded or validated.
	ErrBadPayload = errors.New("bad payload")
)

// Envelope is one websocket text frame: {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope encodes data once so it can be pushed to many sessions.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// PrivateMessage is the private_message payload.
type PrivateMessage struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient" validate:"required"`
	Message   string `json:"message" validate:"required"`
	Type      string `json:"type" validate:"omitempty,oneof=text image video gif audio file"`
}

// MarkAsSeen is the mark_as_seen payload. SocketID is accepted for
// compatibility; the requesting session is always the carrying connection.
type MarkAsSeen struct {
	SenderID    string `json:"senderId" validate:"required"`
	RecipientID string `json:"recipientId"`
	SocketID    string `json:"socketId"`
}

// SeenReceipt is the messages_marked_as_seen payload.
type SeenReceipt struct {
	SenderID string `json:"senderId"`
	Seen     bool   `json:"seen,omitempty"`
}

// ErrorPayload tells the originating session that an event failed.
type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

var validate = validator.New()

// decodeData unmarshals env.Data into v and validates struct tags.
func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s requires data", ErrBadPayload, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

// decodeUserID reads the optional user id carried by join and
// get_unread_messages. Absent, null and "" all decode to "".
func decodeUserID(env Envelope) (string, error) {
	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("%w: user id must be a string", ErrBadPayload)
	}
	return strings.TrimSpace(id), nil
}

// ---------------------------------------------
// ⚡ Core contracts
// ---------------------------------------------

// Handle is the transport side of a session.
// Push must not block; a closed handle returns ErrSessionClosed.
type Handle interface {
	ID() string
	Push(env Envelope) error
}

// Snapshot is the full presence map at one registry version.
type Snapshot struct {
	Version uint64
	Online  map[string]bool
}

// Broadcaster delivers presence snapshots. The router only sees this
// interface, so a delta-based broadcaster can replace the full-map one.
type Broadcaster interface {
	// Announce pushes snap to every connected session.
	Announce(snap Snapshot)
	// RespondWithSnapshot pushes snap to one session only.
	RespondWithSnapshot(to Handle, snap Snapshot)
}

func push(h Handle, event string, data any) error {
	env, err := NewEnvelope(event, data)
	if err != nil {
		return err
	}
	return h.Push(env)
}
