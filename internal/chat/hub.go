package chat

import (
	"context"
	"errors"
	"log/slog"

	"dm-chat/internal/metrics"
)

// Hub owns the set of open connections and fans presence out to all of them,
// joined or not. Run is the only goroutine that touches clients.
type Hub struct {
	clients    map[Handle]bool
	broadcast  chan Envelope // Registry -> every client
	register   chan Handle   // connection opened
	unregister chan Handle   // connection closed
	done       chan struct{} // closed when Run returns

	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[Handle]bool),
		broadcast:  make(chan Envelope),
		register:   make(chan Handle),
		unregister: make(chan Handle),
		done:       make(chan struct{}),
		log:        log,
		metrics:    m,
	}
}

// Run processes hub traffic until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.metrics.ConnectionOpened()

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.metrics.ConnectionClosed()
			}

		case env := <-h.broadcast:
			for client := range h.clients {
				if err := client.Push(env); err != nil {
					// Full or closed: the client's pumps finish the teardown.
					h.log.Debug("hub.broadcast.drop", "conn_id", client.ID(), "err", err)
					if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrSendQueueFull) {
						delete(h.clients, client)
						h.metrics.ConnectionClosed()
					}
				}
			}
		}
	}
}

// Attach adds an open connection to the fan-out set.
func (h *Hub) Attach(c Handle) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Detach removes a connection from the fan-out set.
func (h *Hub) Detach(c Handle) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Announce hands the snapshot to the run loop. The send completes only once
// the loop has it, so snapshots announced in order are fanned out in order.
func (h *Hub) Announce(snap Snapshot) {
	env, err := NewEnvelope(EventUserStatus, snap.Online)
	if err != nil {
		h.log.Error("hub.announce.encode", "err", err)
		return
	}
	select {
	case h.broadcast <- env:
	case <-h.done:
	}
}

func (h *Hub) RespondWithSnapshot(to Handle, snap Snapshot) {
	if err := push(to, EventUserStatus, snap.Online); err != nil {
		h.log.Debug("hub.snapshot.drop", "conn_id", to.ID(), "err", err)
	}
}
