package message

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func appendN(t *testing.T, s Store, from, to string, n int) []Message {
	t.Helper()
	out := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		m, err := s.Append(context.Background(), NewMessage{Sender: from, Recipient: to, Body: "hello"})
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestMemoryStore_AppendAssignsFields(t *testing.T) {
	req := require.New(t)
	s := NewMemoryStore()

	m, err := s.Append(context.Background(), NewMessage{Sender: " alice ", Recipient: "bob", Body: "hi"})
	req.NoError(err)
	req.NotEmpty(m.ID)
	req.Len(m.ID, 26)
	req.Equal("alice", m.Sender)
	req.Equal(KindText, m.Kind)
	req.False(m.Seen)
	req.False(m.CreatedAt.IsZero())
}

func TestMemoryStore_AppendRejectsInvalid(t *testing.T) {
	s := NewMemoryStore()
	cases := map[string]NewMessage{
		"no sender":    {Recipient: "bob", Body: "hi"},
		"no recipient": {Sender: "alice", Body: "hi"},
		"blank body":   {Sender: "alice", Recipient: "bob", Body: "  "},
		"bad kind":     {Sender: "alice", Recipient: "bob", Body: "hi", Kind: "sticker"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Append(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}

	got, err := s.FindUnseenFor(context.Background(), "bob")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestMemoryStore_CreatedAtStrictlyIncreasing(t *testing.T) {
	s := NewMemoryStore()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	msgs := appendN(t, s, "alice", "bob", 3)
	require.True(t, msgs[1].CreatedAt.After(msgs[0].CreatedAt))
	require.True(t, msgs[2].CreatedAt.After(msgs[1].CreatedAt))
}

func TestMemoryStore_FindConversationSymmetricAndOrdered(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	appendN(t, s, "alice", "bob", 2)
	appendN(t, s, "bob", "alice", 2)
	appendN(t, s, "alice", "carol", 1)
	last := appendN(t, s, "alice", "bob", 1)[0]

	ab, err := s.FindConversation(ctx, "alice", "bob")
	req.NoError(err)
	ba, err := s.FindConversation(ctx, "bob", "alice")
	req.NoError(err)

	req.Len(ab, 5)
	req.Equal(ab, ba)
	req.Contains(ab, last)
	req.True(sort.SliceIsSorted(ab, func(i, j int) bool { return ab[i].CreatedAt.Before(ab[j].CreatedAt) }))
}

func TestMemoryStore_FindUnseenFor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	appendN(t, s, "alice", "bob", 2)
	appendN(t, s, "bob", "alice", 1)

	unseen, err := s.FindUnseenFor(ctx, "bob")
	req.NoError(err)
	req.Len(unseen, 2)
	for _, m := range unseen {
		req.Equal("bob", m.Recipient)
		req.False(m.Seen)
	}
}

func TestMemoryStore_MarkSeenIsDirectionalAndIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMemoryStore()

	appendN(t, s, "alice", "bob", 3)
	appendN(t, s, "bob", "alice", 2)

	n, err := s.MarkSeen(ctx, "alice", "bob")
	req.NoError(err)
	req.EqualValues(3, n)

	n, err = s.MarkSeen(ctx, "alice", "bob")
	req.NoError(err)
	req.EqualValues(0, n)

	bob, err := s.FindUnseenFor(ctx, "bob")
	req.NoError(err)
	req.Empty(bob)

	alice, err := s.FindUnseenFor(ctx, "alice")
	req.NoError(err)
	req.Len(alice, 2)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, NewMessage{Sender: "alice", Recipient: "bob", Body: "hi"})
	require.ErrorIs(t, err, ErrStore)

	var se *StoreError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "append", se.Op)
	require.ErrorIs(t, err, context.Canceled)
}
