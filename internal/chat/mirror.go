package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const mirrorQueueSize = 128

// RedisMirror decorates a Broadcaster: local fan-out happens first, then the
// same snapshot is published on a Redis channel and stored under
// "<channel>:latest" so other services can follow presence.
// A single Run goroutine publishes, so snapshots leave in version order.
type RedisMirror struct {
	next    Broadcaster
	rdb     *redis.Client
	channel string
	queue   chan []byte
	log     *slog.Logger
}

// mirroredSnapshot is the JSON published on the channel.
type mirroredSnapshot struct {
	Version uint64          `json:"version"`
	Online  map[string]bool `json:"online"`
}

func NewRedisMirror(next Broadcaster, rdb *redis.Client, channel string, log *slog.Logger) *RedisMirror {
	return &RedisMirror{
		next:    next,
		rdb:     rdb,
		channel: channel,
		queue:   make(chan []byte, mirrorQueueSize),
		log:     log,
	}
}

func (m *RedisMirror) Announce(snap Snapshot) {
	m.next.Announce(snap)

	payload, err := json.Marshal(mirroredSnapshot{Version: snap.Version, Online: snap.Online})
	if err != nil {
		m.log.Error("mirror.encode.fail", "err", err)
		return
	}
	// Called under the registry lock: never wait on Redis here.
	select {
	case m.queue <- payload:
	default:
		m.log.Warn("mirror.queue.full", "version", snap.Version)
	}
}

func (m *RedisMirror) RespondWithSnapshot(to Handle, snap Snapshot) {
	m.next.RespondWithSnapshot(to, snap)
}

// Run publishes queued snapshots until ctx is canceled.
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-m.queue:
			if err := m.rdb.Publish(ctx, m.channel, payload).Err(); err != nil {
				m.log.Warn("mirror.publish.fail", "channel", m.channel, "err", err)
				continue
			}
			if err := m.rdb.Set(ctx, m.channel+":latest", payload, 0).Err(); err != nil {
				m.log.Warn("mirror.set.fail", "channel", m.channel, "err", err)
			}
		}
	}
}
