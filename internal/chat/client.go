package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait   = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
)

// Client is a middleman between the websocket connection and the chat core.
//
// send is never closed: the registry, the hub and other sessions' routers
// all push concurrently, and closing it under them would panic. done tells
// both pumps to stop instead, and Close is idempotent.
type Client struct {
	hub        *Hub
	dispatcher *Dispatcher
	conn       *websocket.Conn
	log        *slog.Logger

	id     string
	userID string

	// Buffered channel of outbound frames.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	maxMessageSize int64
}

func newClient(hub *Hub, d *Dispatcher, conn *websocket.Conn, log *slog.Logger, userID string, queue int, maxMessageSize int64) *Client {
	id := uuid.NewString()
	return &Client{
		hub:            hub,
		dispatcher:     d,
		conn:           conn,
		log:            log.With("conn_id", id, "user_id", userID),
		id:             id,
		userID:         userID,
		send:           make(chan []byte, queue),
		done:           make(chan struct{}),
		maxMessageSize: maxMessageSize,
	}
}

func (c *Client) ID() string { return c.id }

// Push queues env without blocking. A client that cannot keep up is closed.
func (c *Client) Push(env Envelope) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Event, err)
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrSessionClosed
	default:
		c.log.Warn("client.send.full", "event", env.Event)
		c.Close()
		return ErrSendQueueFull
	}
}

// Close signals both pumps to stop.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump pumps events from the websocket connection to the dispatcher.
// Events of this connection are handled here one by one, in arrival order.
func (c *Client) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		// Cleanup: If connection dies, drop presence then leave the hub
		cancel()
		c.dispatcher.Disconnect(c)
		c.hub.Detach(c)
		c.Close()
		c.conn.Close()
	}()

	// Config limits to prevent abuse
	c.conn.SetReadLimit(c.maxMessageSize)

	// Heartbeat logic (Keep-Alive)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Info("client.read.fail", "err", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			c.dispatcher.reject(c, "", fmt.Errorf("%w: frame is not an event envelope", ErrBadPayload))
			continue
		}
		// PIPELINE: Browser -> ReadPump -> Dispatcher
		c.dispatcher.Dispatch(ctx, c.userID, c, env)
	}
}

// writePump pumps queued frames to the websocket connection.
// Each frame carries exactly one envelope.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case payload := <-c.send:
			// Set a write deadline so we don't hang forever
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Info("client.write.fail", "err", err)
				c.Close()
				return
			}

		case <-ticker.C:
			// Heartbeat: Send a Ping every 54 seconds to keep connection alive
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
