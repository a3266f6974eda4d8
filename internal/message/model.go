package message

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind is the payload type of a message body.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindGif   Kind = "gif"
	KindAudio Kind = "audio"
	KindFile  Kind = "file"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindGif, KindAudio, KindFile:
		return true
	}
	return false
}

// ---------------------------------------------
// 🗄️ Database & API Models
// ---------------------------------------------

// Message is a persisted private message. Media kinds carry a URL in Body.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"message"`
	Kind      Kind      `json:"type"`
	Seen      bool      `json:"seen"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage is what a caller hands to Store.Append.
// The store assigns ID, Seen=false and CreatedAt.
type NewMessage struct {
	Sender    string
	Recipient string
	Body      string
	Kind      Kind
}

// normalize trims identities, defaults Kind to text and rejects incomplete input.
func (in NewMessage) normalize() (NewMessage, error) {
	in.Sender = strings.TrimSpace(in.Sender)
	in.Recipient = strings.TrimSpace(in.Recipient)
	if in.Kind == "" {
		in.Kind = KindText
	}

	switch {
	case in.Sender == "":
		return in, invalid("missing sender")
	case in.Recipient == "":
		return in, invalid("missing recipient")
	case strings.TrimSpace(in.Body) == "":
		return in, invalid("empty body")
	case !in.Kind.Valid():
		return in, invalid("unknown kind " + string(in.Kind))
	}
	return in, nil
}

// newID returns a ULID. ulid.Make is monotonic within a process, so ids
// issued by one server sort in the order they were issued.
func newID() string {
	return ulid.Make().String()
}
