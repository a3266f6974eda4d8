package chat

import (
	"context"
	"fmt"
	"log/slog"

	"dm-chat/internal/metrics"
)

// Dispatcher maps inbound events of one authenticated connection onto the
// router and reconciler. A connection's events are dispatched one at a time,
// in the order they were read.
type Dispatcher struct {
	registry   *Registry
	router     *Router
	reconciler *Reconciler
	log        *slog.Logger
	metrics    *metrics.Metrics
}

func NewDispatcher(registry *Registry, router *Router, reconciler *Reconciler, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		router:     router,
		reconciler: reconciler,
		log:        log,
		metrics:    m,
	}
}

// Dispatch handles one envelope read from h. identity is the user id the
// connection authenticated as; events may not act for anyone else.
func (d *Dispatcher) Dispatch(ctx context.Context, identity string, h Handle, env Envelope) {
	switch env.Event {
	case EventJoin:
		userID, err := d.ownUserID(env, identity)
		if err != nil {
			d.reject(h, env.Event, err)
			return
		}
		_ = d.router.Join(ctx, userID, h)

	case EventPrivateMessage:
		var pm PrivateMessage
		if err := decodeData(env, &pm); err != nil {
			d.reject(h, env.Event, err)
			return
		}
		if pm.Sender != "" && pm.Sender != identity {
			d.reject(h, env.Event, fmt.Errorf("%w: sender %q", ErrForbidden, pm.Sender))
			return
		}
		_, _ = d.router.Send(ctx, h, identity, pm)

	case EventMarkAsSeen:
		var in MarkAsSeen
		if err := decodeData(env, &in); err != nil {
			d.reject(h, env.Event, err)
			return
		}
		if in.RecipientID == "" {
			in.RecipientID = identity
		}
		if in.RecipientID != identity {
			d.reject(h, env.Event, fmt.Errorf("%w: recipient %q", ErrForbidden, in.RecipientID))
			return
		}
		_, _ = d.reconciler.MarkSeen(ctx, h, in.SenderID, in.RecipientID)

	case EventGetUnreadMessages:
		userID, err := d.ownUserID(env, identity)
		if err != nil {
			d.reject(h, env.Event, err)
			return
		}
		_ = d.router.PushUnread(ctx, userID, h)

	case EventGetOnlineUsers:
		d.registry.SendSnapshot(h)

	default:
		d.reject(h, env.Event, fmt.Errorf("%w: unknown event %q", ErrBadPayload, env.Event))
	}
}

// Disconnect is called once the transport of h is gone.
func (d *Dispatcher) Disconnect(h Handle) {
	if removed := d.registry.Unregister(h); len(removed) > 0 {
		d.log.Info("dispatcher.disconnect", "conn_id", h.ID(), "user_ids", removed)
	}
}

// ownUserID defaults an absent user id to identity and refuses any other.
func (d *Dispatcher) ownUserID(env Envelope, identity string) (string, error) {
	userID, err := decodeUserID(env)
	if err != nil {
		return "", err
	}
	if userID == "" {
		return identity, nil
	}
	if userID != identity {
		return "", fmt.Errorf("%w: user %q", ErrForbidden, userID)
	}
	return userID, nil
}

func (d *Dispatcher) reject(h Handle, event string, err error) {
	report(d.log, d.metrics, h, event, "", err)
}
