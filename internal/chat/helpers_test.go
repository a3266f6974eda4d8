package chat

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"dm-chat/internal/message"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandle stands in for a websocket client.
type recordingHandle struct {
	id  string
	err error

	mu  sync.Mutex
	got []Envelope
}

func newHandle(id string) *recordingHandle {
	return &recordingHandle{id: id}
}

func (h *recordingHandle) ID() string { return h.id }

func (h *recordingHandle) Push(env Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, env)
	return h.err
}

func (h *recordingHandle) events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.got))
	for _, env := range h.got {
		out = append(out, env.Event)
	}
	return out
}

func (h *recordingHandle) all(event string) []Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Envelope
	for _, env := range h.got {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (h *recordingHandle) last(t *testing.T, event string) Envelope {
	t.Helper()
	envs := h.all(event)
	require.NotEmpty(t, envs, "no %s event, got %v", event, h.events())
	return envs[len(envs)-1]
}

func decodeAs[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// recordingBroadcaster captures presence traffic.
type recordingBroadcaster struct {
	mu        sync.Mutex
	announced []Snapshot
	responded []Handle
}

func (b *recordingBroadcaster) Announce(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announced = append(b.announced, snap)
}

func (b *recordingBroadcaster) RespondWithSnapshot(to Handle, snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responded = append(b.responded, to)
	_ = push(to, EventUserStatus, snap.Online)
}

func (b *recordingBroadcaster) snapshots() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Snapshot(nil), b.announced...)
}

// core wires the chat components around store without any transport.
type core struct {
	store       message.Store
	broadcaster *recordingBroadcaster
	registry    *Registry
	router      *Router
	reconciler  *Reconciler
	dispatcher  *Dispatcher
}

func newCore(store message.Store) *core {
	log := discardLogger()
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)
	router := NewRouter(store, reg, log, nil)
	rec := NewReconciler(store, reg, log, nil)
	return &core{
		store:       store,
		broadcaster: b,
		registry:    reg,
		router:      router,
		reconciler:  rec,
		dispatcher:  NewDispatcher(reg, router, rec, log, nil),
	}
}

func envelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	if data == nil {
		return Envelope{Event: event}
	}
	env, err := NewEnvelope(event, data)
	require.NoError(t, err)
	return env
}
