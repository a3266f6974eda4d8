package chat

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"dm-chat/internal/message"
	myMiddleware "dm-chat/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	defaultSendQueue      = 256
	defaultMaxMessageSize = 64 << 10
)

// HandlerOptions tunes connection handling. Zero values pick defaults.
type HandlerOptions struct {
	SendQueueSize  int
	MaxMessageSize int64
	// AllowedOrigins lists accepted Origin values (scheme://host[:port]).
	// Empty accepts any origin.
	AllowedOrigins []string
}

type Handler struct {
	hub        *Hub
	dispatcher *Dispatcher
	store      message.Store
	log        *slog.Logger
	opts       HandlerOptions
	upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, d *Dispatcher, store message.Store, log *slog.Logger, opts HandlerOptions) *Handler {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaultSendQueue
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	h := &Handler{
		hub:        hub,
		dispatcher: d,
		store:      store,
		log:        log,
		opts:       opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeWs upgrades an authenticated request. The session only becomes
// visible to others once the client sends join.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Info("ws.upgrade.fail", "user_id", userID, "err", err)
		return
	}

	client := newClient(h.hub, h.dispatcher, conn, h.log, userID, h.opts.SendQueueSize, h.opts.MaxMessageSize)
	h.hub.Attach(client)
	client.log.Info("ws.connect", "remote", r.RemoteAddr)

	// Start the two pumps
	// Note: These run in new goroutines, ServeWs returns immediately.
	go client.writePump()
	go client.readPump()
}

// GetChatHistory returns the conversation between the caller and {peerID},
// oldest first.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := myMiddleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	peerID := strings.TrimSpace(chi.URLParam(r, "peerID"))
	if peerID == "" {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}

	msgs, err := h.store.FindConversation(r.Context(), userID, peerID)
	if err != nil {
		h.log.Error("history.fetch.fail", "user_id", userID, "peer_id", peerID, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(h.opts.AllowedOrigins) == 0 || origin == "" {
		// Dev mode, or a non-browser client.
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	got := strings.ToLower(u.Scheme + "://" + u.Host)
	for _, allowed := range h.opts.AllowedOrigins {
		if strings.ToLower(strings.TrimRight(strings.TrimSpace(allowed), "/")) == got {
			return true
		}
	}
	return false
}
