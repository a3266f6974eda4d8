package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_LastRegisterWins(t *testing.T) {
	req := require.New(t)
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)
	h1, h2 := newHandle("h1"), newHandle("h2")

	reg.Register("alice", h1)
	reg.Register("alice", h2)

	got, ok := reg.Lookup("alice")
	req.True(ok)
	req.Same(h2, got)

	snap := reg.Snapshot()
	req.Equal(map[string]bool{"alice": true}, snap.Online)
	req.Len(b.snapshots(), 2)
}

func TestRegistry_UnregisterClearsPresence(t *testing.T) {
	req := require.New(t)
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)
	h := newHandle("h")

	reg.Register("alice", h)
	removed := reg.Unregister(h)

	req.Equal([]string{"alice"}, removed)
	_, ok := reg.Lookup("alice")
	req.False(ok)
	req.False(reg.Snapshot().Online["alice"])

	snaps := b.snapshots()
	req.Len(snaps, 2)
	req.Empty(snaps[1].Online)
}

func TestRegistry_StaleDisconnectKeepsNewerSession(t *testing.T) {
	req := require.New(t)
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)
	oldConn, newConn := newHandle("old"), newHandle("new")

	reg.Register("alice", oldConn)
	reg.Register("alice", newConn)
	removed := reg.Unregister(oldConn)

	req.Empty(removed)
	got, ok := reg.Lookup("alice")
	req.True(ok)
	req.Same(newConn, got)
	// Nothing changed, nothing announced.
	req.Len(b.snapshots(), 2)
}

func TestRegistry_UnregisterScansEveryEntry(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(&recordingBroadcaster{}, nil)
	shared, other := newHandle("shared"), newHandle("other")

	reg.Register("alice", shared)
	reg.Register("bob", shared)
	reg.Register("carol", other)

	removed := reg.Unregister(shared)
	req.ElementsMatch([]string{"alice", "bob"}, removed)
	req.Equal(map[string]bool{"carol": true}, reg.Snapshot().Online)
}

func TestRegistry_IgnoresEmptyUser(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)

	reg.Register("  ", newHandle("h"))
	require.Empty(t, reg.Snapshot().Online)
	require.Empty(t, b.snapshots())
}

func TestRegistry_AnnouncementsAreOrderedAndCurrent(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := newHandle(fmt.Sprintf("h%d", i))
			reg.Register(fmt.Sprintf("user-%d", i), h)
			if i%2 == 0 {
				reg.Unregister(h)
			}
		}(i)
	}
	wg.Wait()

	snaps := b.snapshots()
	require.Len(t, snaps, 75)
	for i := 1; i < len(snaps); i++ {
		require.Equal(t, snaps[i-1].Version+1, snaps[i].Version)
	}

	// The last announcement is exactly the current table.
	final := reg.Snapshot()
	require.Equal(t, final.Version, snaps[len(snaps)-1].Version)
	require.Equal(t, final.Online, snaps[len(snaps)-1].Online)
	require.Len(t, final.Online, 25)
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	reg := NewRegistry(&recordingBroadcaster{}, nil)
	reg.Register("alice", newHandle("h"))

	snap := reg.Snapshot()
	snap.Online["mallory"] = true

	require.NotContains(t, reg.Snapshot().Online, "mallory")
}

func TestRegistry_SendSnapshotDoesNotBroadcast(t *testing.T) {
	b := &recordingBroadcaster{}
	reg := NewRegistry(b, nil)
	reg.Register("alice", newHandle("a"))
	asker := newHandle("asker")

	reg.SendSnapshot(asker)

	require.Len(t, b.snapshots(), 1)
	online := decodeAs[map[string]bool](t, asker.last(t, EventUserStatus))
	require.Equal(t, map[string]bool{"alice": true}, online)
}
