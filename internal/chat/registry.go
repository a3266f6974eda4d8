package chat

import (
	"strings"
	"sync"

	"dm-chat/internal/metrics"

	"github.com/samber/lo"
)

// Registry maps a user id to its single live handle. The presence table is
// derived from it (every key is online), so the two can never disagree.
//
// Only the forward map userID -> handle is kept. Unregister scans all entries
// by handle value instead of trusting a reverse index: a user who re-joined
// on a new connection keeps the new mapping when the old connection's
// disconnect arrives late. The scan is O(users) per disconnect, which is
// fine at friends-list scale.
//
// Every mutation announces the resulting snapshot while mu is held, so
// announcements leave in version order and never lag the mutation that
// caused them.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]Handle
	version     uint64
	broadcaster Broadcaster
	metrics     *metrics.Metrics
}

func NewRegistry(b Broadcaster, m *metrics.Metrics) *Registry {
	return &Registry{
		sessions:    make(map[string]Handle),
		broadcaster: b,
		metrics:     m,
	}
}

// Register binds userID to h, replacing any prior handle (last one wins).
func (r *Registry) Register(userID string, h Handle) {
	userID = strings.TrimSpace(userID)
	if userID == "" || h == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[userID] = h
	r.announceLocked()
}

// Unregister drops every user bound to h and returns their ids.
func (r *Registry) Unregister(h Handle) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for userID, cur := range r.sessions {
		if cur == h {
			delete(r.sessions, userID)
			removed = append(removed, userID)
		}
	}
	if len(removed) > 0 {
		r.announceLocked()
	}
	return removed
}

// Lookup returns the live handle for userID, if any.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.sessions[userID]
	return h, ok
}

// Snapshot returns a copy of the presence table.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// SendSnapshot answers a get_online_users pull without broadcasting.
func (r *Registry) SendSnapshot(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcaster.RespondWithSnapshot(h, r.snapshotLocked())
}

func (r *Registry) snapshotLocked() Snapshot {
	return Snapshot{
		Version: r.version,
		Online:  lo.MapValues(r.sessions, func(_ Handle, _ string) bool { return true }),
	}
}

func (r *Registry) announceLocked() {
	r.version++
	snap := r.snapshotLocked()
	r.metrics.PresenceChanged(len(snap.Online))
	r.broadcaster.Announce(snap)
}
