package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dm-chat/internal/message"
	"dm-chat/internal/metrics"
)

// Router runs the delivery state machine for one inbound message:
// persist, confirm to the sender, resolve the recipient, live push, then
// refresh the recipient's unread list. Durability precedes delivery: a
// message that failed to persist is never pushed, and a failed push never
// undoes the write.
type Router struct {
	store    message.Store
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewRouter(store message.Store, registry *Registry, log *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{store: store, registry: registry, log: log, metrics: m}
}

// Send persists pm from sender and delivers it. Failures are reported to
// from only and returned.
func (r *Router) Send(ctx context.Context, from Handle, sender string, pm PrivateMessage) (message.Message, error) {
	if err := validate.Struct(pm); err != nil {
		err = fmt.Errorf("%w: %v", ErrBadPayload, err)
		report(r.log, r.metrics, from, EventPrivateMessage, "append", err)
		return message.Message{}, err
	}

	// 1. Persist
	stored, err := r.store.Append(ctx, message.NewMessage{
		Sender:    sender,
		Recipient: pm.Recipient,
		Body:      pm.Message,
		Kind:      message.Kind(pm.Type),
	})
	if err != nil {
		report(r.log, r.metrics, from, EventPrivateMessage, "append", err)
		return message.Message{}, err
	}
	r.metrics.MessageStored()

	// 2. Confirm to the sender
	if err := push(from, EventMessageSent, stored); err != nil {
		r.log.Debug("router.confirm.drop", "conn_id", from.ID(), "msg_id", stored.ID, "err", err)
	}

	// 3. Resolve recipient session
	to, ok := r.registry.Lookup(stored.Recipient)
	if !ok {
		r.log.Debug("router.recipient.offline", "msg_id", stored.ID, "recipient", stored.Recipient)
		return stored, nil
	}

	// 4. Live push
	if err := push(to, EventReceiveMessage, stored); err != nil {
		r.metrics.LivePush(false)
		r.log.Info("router.push.fail", "msg_id", stored.ID, "recipient", stored.Recipient, "err", err)
	} else {
		r.metrics.LivePush(true)
	}

	// 5. Unread refresh, whatever step 4 did. The recipient did not ask for
	// it, so a failure here is only logged.
	unread, err := r.store.FindUnseenFor(ctx, stored.Recipient)
	if err != nil {
		r.metrics.StoreError("find unseen")
		r.log.Warn("router.unread.refresh.fail", "recipient", stored.Recipient, "err", err)
		return stored, nil
	}
	if err := push(to, EventUnreadMessages, unread); err != nil {
		r.log.Debug("router.unread.drop", "recipient", stored.Recipient, "err", err)
	}
	return stored, nil
}

// Join registers userID on h and pushes its backlog when there is one.
func (r *Router) Join(ctx context.Context, userID string, h Handle) error {
	r.registry.Register(userID, h)
	r.log.Info("router.join", "user_id", userID, "conn_id", h.ID())

	unread, err := r.store.FindUnseenFor(ctx, userID)
	if err != nil {
		report(r.log, r.metrics, h, EventJoin, "find unseen", err)
		return err
	}
	if len(unread) == 0 {
		return nil
	}
	return push(h, EventUnreadMessages, unread)
}

// PushUnread answers get_unread_messages with the authoritative list,
// which may be empty.
func (r *Router) PushUnread(ctx context.Context, userID string, h Handle) error {
	unread, err := r.store.FindUnseenFor(ctx, userID)
	if err != nil {
		report(r.log, r.metrics, h, EventGetUnreadMessages, "find unseen", err)
		return err
	}
	return push(h, EventUnreadMessages, unread)
}

// report logs a failed event and tells the originating session only.
// Store internals stay in the log.
func report(log *slog.Logger, m *metrics.Metrics, h Handle, event, op string, err error) {
	msg := err.Error()
	if errors.Is(err, message.ErrStore) {
		m.StoreError(op)
		log.Error("chat.store.fail", "event", event, "op", op, "conn_id", h.ID(), "err", err)
		msg = "temporarily unable to process, retry"
	} else {
		log.Info("chat.event.reject", "event", event, "conn_id", h.ID(), "err", err)
	}
	if perr := push(h, EventError, ErrorPayload{Event: event, Message: msg}); perr != nil {
		log.Debug("chat.error.drop", "conn_id", h.ID(), "err", perr)
	}
}
