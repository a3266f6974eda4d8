package message

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
)

// MemoryStore is the dev fallback when no database is configured.
// Messages are kept in append order; CreatedAt is forced to be strictly
// increasing so append order and CreatedAt order never disagree.
type MemoryStore struct {
	mu   sync.Mutex
	msgs []Message
	last time.Time
	now  func() time.Time
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// Close is a noop for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Append(ctx context.Context, in NewMessage) (Message, error) {
	in, err := in.normalize()
	if err != nil {
		return Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return Message{}, storeErr("append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts

	msg := Message{
		ID:        newID(),
		Sender:    in.Sender,
		Recipient: in.Recipient,
		Body:      in.Body,
		Kind:      in.Kind,
		Seen:      false,
		CreatedAt: ts,
	}
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *MemoryStore) FindUnseenFor(ctx context.Context, userID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("find unseen", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Filter(s.msgs, func(m Message, _ int) bool {
		return m.Recipient == userID && !m.Seen
	}), nil
}

func (s *MemoryStore) FindConversation(ctx context.Context, a, b string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("find conversation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return lo.Filter(s.msgs, func(m Message, _ int) bool {
		return (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a)
	}), nil
}

func (s *MemoryStore) MarkSeen(ctx context.Context, senderID, recipientID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("mark seen", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.Sender == senderID && m.Recipient == recipientID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}
