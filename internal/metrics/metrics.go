package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the chat core collectors. A nil *Metrics is valid and
// records nothing, so components can run without instrumentation.
type Metrics struct {
	Connections       prometheus.Gauge
	OnlineUsers       prometheus.Gauge
	PresenceBroadcast prometheus.Counter
	MessagesStored    prometheus.Counter
	LivePushes        *prometheus.CounterVec
	MessagesSeen      prometheus.Counter
	StoreErrors       *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			Connections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chat_ws_connections",
				Help: "Current number of open websocket connections",
			}),
			OnlineUsers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "chat_online_users",
				Help: "Current number of users with a registered session",
			}),
			PresenceBroadcast: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chat_presence_broadcasts_total",
				Help: "Total number of presence snapshots announced",
			}),
			MessagesStored: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chat_messages_stored_total",
				Help: "Total number of private messages persisted",
			}),
			LivePushes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "chat_live_pushes_total",
				Help: "Live deliveries of stored messages by result",
			}, []string{"result"}),
			MessagesSeen: promauto.NewCounter(prometheus.CounterOpts{
				Name: "chat_messages_marked_seen_total",
				Help: "Total number of messages transitioned to seen",
			}),
			StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "chat_store_errors_total",
				Help: "Message store failures by operation",
			}, []string{"op"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) ConnectionOpened() {
	if m == nil || m.Connections == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil || m.Connections == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) PresenceChanged(online int) {
	if m == nil || m.OnlineUsers == nil || m.PresenceBroadcast == nil {
		return
	}
	m.OnlineUsers.Set(float64(online))
	m.PresenceBroadcast.Inc()
}

func (m *Metrics) MessageStored() {
	if m == nil || m.MessagesStored == nil {
		return
	}
	m.MessagesStored.Inc()
}

func (m *Metrics) LivePush(ok bool) {
	if m == nil || m.LivePushes == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.LivePushes.WithLabelValues(result).Inc()
}

func (m *Metrics) MarkedSeen(n int64) {
	if m == nil || m.MessagesSeen == nil || n <= 0 {
		return
	}
	m.MessagesSeen.Add(float64(n))
}

func (m *Metrics) StoreError(op string) {
	if m == nil || m.StoreErrors == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}
