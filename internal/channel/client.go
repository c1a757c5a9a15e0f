package channel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/internal/logger"
)

const (
	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames: the content limit plus room
	// for base64 framing and the envelope.
	maxMessageSize = 16 << 20

	// sendQueueSize is the outbound buffer per connection. A consumer
	// that falls this far behind is disconnected and must reconcile on
	// reconnect.
	sendQueueSize = 256
)

// Client is one live channel connection. The identity is an immutable
// value bound at handshake completion; handlers receive it explicitly and
// nothing is ever attached to the websocket connection itself.
type Client struct {
	id       string
	identity *auth.Identity
	conn     *websocket.Conn

	send      chan outboundFrame
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, identity *auth.Identity, conn *websocket.Conn) *Client {
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan outboundFrame, sendQueueSize),
		done:     make(chan struct{}),
	}
}

// enqueue queues a frame for delivery. A full queue means the consumer is
// too slow; the connection is dropped rather than blocking a broadcast.
func (c *Client) enqueue(frame outboundFrame) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		logger.Warn("dropping slow channel consumer", "conn_id", c.id)
		c.close()
	}
}

// close shuts the connection down once. Pending acks are dropped
// silently; the peer reconciles after reconnect.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump serializes all writes to the connection: queued frames and
// keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// acker acknowledges exactly one inbound event. Double use is a handler
// bug and panics so it cannot ship silently; forgotten acks are caught by
// the dispatcher.
type acker struct {
	client *Client
	id     *uint64
	used   atomic.Bool
}

// Ack sends the envelope to the peer. Events sent without an id are
// acknowledged into the void.
func (a *acker) Ack(env AckEnvelope) {
	if !a.used.CompareAndSwap(false, true) {
		panic("channel: event acknowledged twice")
	}
	if a.id == nil {
		return
	}
	a.client.enqueue(outboundFrame{Ack: a.id, Data: env})
}

// acked reports whether Ack has been called.
func (a *acker) acked() bool {
	return a.used.Load()
}
