package chat

import (
	"context"
	"errors"
	"testing"

	"dm-chat/internal/message"
	"dm-chat/internal/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestReconciler_MarkSeenNotifiesBothSides(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := newCore(message.NewMemoryStore())
	alice, bob, carol := newHandle("a"), newHandle("b"), newHandle("c")

	for i := 0; i < 3; i++ {
		_, err := c.router.Send(ctx, alice, "alice", PrivateMessage{Recipient: "bob", Message: "ping"})
		req.NoError(err)
	}
	fromCarol, err := c.router.Send(ctx, carol, "carol", PrivateMessage{Recipient: "bob", Message: "yo"})
	req.NoError(err)

	c.registry.Register("alice", alice)
	c.registry.Register("bob", bob)

	n, err := c.reconciler.MarkSeen(ctx, bob, "alice", "bob")
	req.NoError(err)
	req.EqualValues(3, n)

	ack := decodeAs[SeenReceipt](t, bob.last(t, EventMessagesMarkedAsSeen))
	req.Equal(SeenReceipt{SenderID: "alice"}, ack)

	receipt := decodeAs[SeenReceipt](t, alice.last(t, EventMessagesMarkedAsSeen))
	req.Equal(SeenReceipt{SenderID: "bob", Seen: true}, receipt)

	unread := decodeAs[[]message.Message](t, bob.last(t, EventUnreadMessages))
	req.Len(unread, 1)
	req.Equal(fromCarol.ID, unread[0].ID)

	req.Equal([]string{EventMessagesMarkedAsSeen, EventUnreadMessages}, bob.events())
}

func TestReconciler_IsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := newCore(message.NewMemoryStore())
	alice, bob := newHandle("a"), newHandle("b")

	_, err := c.router.Send(ctx, alice, "alice", PrivateMessage{Recipient: "bob", Message: "ping"})
	req.NoError(err)

	n, err := c.reconciler.MarkSeen(ctx, bob, "alice", "bob")
	req.NoError(err)
	req.EqualValues(1, n)

	n, err = c.reconciler.MarkSeen(ctx, bob, "alice", "bob")
	req.NoError(err)
	req.EqualValues(0, n)
	req.Len(bob.all(EventMessagesMarkedAsSeen), 2)
	req.Len(bob.all(EventUnreadMessages), 2)
}

func TestReconciler_OnlyAffectsOneDirection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := newCore(message.NewMemoryStore())
	alice, bob := newHandle("a"), newHandle("b")

	_, err := c.router.Send(ctx, alice, "alice", PrivateMessage{Recipient: "bob", Message: "ping"})
	req.NoError(err)
	_, err = c.router.Send(ctx, bob, "bob", PrivateMessage{Recipient: "alice", Message: "pong"})
	req.NoError(err)

	_, err = c.reconciler.MarkSeen(ctx, bob, "alice", "bob")
	req.NoError(err)

	unseen, err := c.store.FindUnseenFor(ctx, "alice")
	req.NoError(err)
	req.Len(unseen, 1)
}

func TestReconciler_StoreFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	c := newCore(store)
	alice, bob := newHandle("a"), newHandle("b")
	c.registry.Register("alice", alice)

	store.EXPECT().MarkSeen(gomock.Any(), "alice", "bob").
		Return(int64(0), &message.StoreError{Op: "mark seen", Err: errors.New("deadlock")})

	_, err := c.reconciler.MarkSeen(context.Background(), bob, "alice", "bob")
	req.ErrorIs(err, message.ErrStore)

	req.Equal([]string{EventError}, bob.events())
	req.Empty(alice.events())
}

func TestReconciler_RefreshFailureStillReportsSuccess(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	c := newCore(store)
	bob := newHandle("b")

	gomock.InOrder(
		store.EXPECT().MarkSeen(gomock.Any(), "alice", "bob").Return(int64(2), nil),
		store.EXPECT().FindUnseenFor(gomock.Any(), "bob").
			Return(nil, &message.StoreError{Op: "find unseen", Err: errors.New("timeout")}),
	)

	n, err := c.reconciler.MarkSeen(context.Background(), bob, "alice", "bob")
	req.NoError(err)
	req.EqualValues(2, n)
	req.Equal([]string{EventMessagesMarkedAsSeen, EventError}, bob.events())
}
