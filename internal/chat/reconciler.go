package chat

import (
	"context"
	"log/slog"

	"dm-chat/internal/message"
	"dm-chat/internal/metrics"
)

// Reconciler is the only writer of seen state.
type Reconciler struct {
	store    message.Store
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewReconciler(store message.Store, registry *Registry, log *slog.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, registry: registry, log: log, metrics: m}
}

// MarkSeen flips senderID -> recipientID to seen on behalf of requester,
// then sends read receipts both ways and a fresh unread list to requester.
// Repeating it affects zero rows and still notifies.
func (r *Reconciler) MarkSeen(ctx context.Context, requester Handle, senderID, recipientID string) (int64, error) {
	n, err := r.store.MarkSeen(ctx, senderID, recipientID)
	if err != nil {
		report(r.log, r.metrics, requester, EventMarkAsSeen, "mark seen", err)
		return 0, err
	}
	r.metrics.MarkedSeen(n)
	r.log.Debug("reconciler.mark_seen", "sender", senderID, "recipient", recipientID, "affected", n)

	if err := push(requester, EventMessagesMarkedAsSeen, SeenReceipt{SenderID: senderID}); err != nil {
		r.log.Debug("reconciler.ack.drop", "conn_id", requester.ID(), "err", err)
	}

	// Read receipt for the original sender, keyed by who read it.
	if senderSession, ok := r.registry.Lookup(senderID); ok {
		if err := push(senderSession, EventMessagesMarkedAsSeen, SeenReceipt{SenderID: recipientID, Seen: true}); err != nil {
			r.log.Debug("reconciler.receipt.drop", "conn_id", senderSession.ID(), "err", err)
		}
	}

	unread, err := r.store.FindUnseenFor(ctx, recipientID)
	if err != nil {
		// The seen transition already happened; only the refresh failed.
		report(r.log, r.metrics, requester, EventGetUnreadMessages, "find unseen", err)
		return n, nil
	}
	if err := push(requester, EventUnreadMessages, unread); err != nil {
		r.log.Debug("reconciler.unread.drop", "conn_id", requester.ID(), "err", err)
	}
	return n, nil
}
