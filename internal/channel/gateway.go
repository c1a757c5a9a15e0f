// Package channel implements the bidirectional event gateway: the
// websocket handshake, per-tenant rooms, the ack protocol and the four
// file lifecycle events.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/internal/logger"
	"github.com/marmos91/syncbox/internal/metrics"
	"github.com/marmos91/syncbox/pkg/content"
	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/store"
)

// Gateway accepts channel connections, authenticates them and dispatches
// their events against the file store.
type Gateway struct {
	hub       *Hub
	store     store.Store
	validator *auth.Validator
	upgrader  websocket.Upgrader
}

// NewGateway creates a channel gateway. allowedOrigins follows the CORS
// configuration of the HTTP gateway: explicit origins, or "*" for any.
func NewGateway(s store.Store, validator *auth.Validator, allowedOrigins []string) *Gateway {
	checkOrigin := func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}

	return &Gateway{
		hub:       NewHub(),
		store:     s,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Hub returns the room registry, which is also the Broadcaster handed to
// the HTTP gateway.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// HandleSocket upgrades the connection, runs the auth handshake against
// the apiKey query parameter and enters the connection's event loop. The
// loop runs on the caller's goroutine; a write pump runs alongside it.
func (g *Gateway) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	identity, err := g.validator.Authenticate(r.Context(), r.URL.Query().Get("apiKey"))
	if err != nil || identity.Admin {
		code := errdefs.CodeUnauthorized
		if err != nil {
			code = errdefs.FromError(err).Code
		}
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(code))
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	client := newClient(uuid.New().String(), identity, conn)
	g.hub.join(identity.StoreID, client)
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()
	logger.Info("channel connection established",
		"conn_id", client.id, "room", RoomName(identity.StoreID), "key_id", identity.KeyID)

	go client.writePump()
	g.readLoop(client)

	g.hub.leave(identity.StoreID, client)
	client.close()
	metrics.ConnectionsActive.Dec()
	logger.Info("channel connection closed", "conn_id", client.id)
}

// readLoop reads frames until the connection dies. Events are handled
// inline, so per-connection ordering is preserved through the ack;
// different connections run on their own goroutines.
func (g *Gateway) readLoop(c *Client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("channel read error", "conn_id", c.id, "error", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Warn("malformed channel frame", "conn_id", c.id, "error", err)
			continue
		}
		g.dispatch(c, &frame)
	}
}

// dispatch routes one inbound event, guaranteeing exactly one ack.
func (g *Gateway) dispatch(c *Client, frame *inboundFrame) {
	ack := &acker{client: c, id: frame.ID}
	metrics.EventsReceived.WithLabelValues(frame.Event).Inc()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("channel handler panic",
				"conn_id", c.id, "event", frame.Event, "panic", fmt.Sprintf("%v", r))
			if !ack.acked() {
				ack.Ack(ackFailure(errdefs.New(errdefs.CodeInternal, "internal server error")))
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch frame.Event {
	case EventCreatedFile:
		g.handleCreatedFile(ctx, c, frame.Data, ack)
	case EventModifiedFile:
		g.handleModifiedFile(ctx, c, frame.Data, ack)
	case EventDeletedFile:
		g.handleDeletedFile(ctx, c, frame.Data, ack)
	case EventRenamedFile:
		g.handleRenamedFile(ctx, c, frame.Data, ack)
	default:
		ack.Ack(ackFailure(errdefs.Validation("unknown event: " + frame.Event)))
	}

	if !ack.acked() {
		// A handler path forgot its ack; fail loudly server-side but
		// never leave the peer hanging.
		logger.Error("event left unacknowledged", "conn_id", c.id, "event", frame.Event)
		ack.Ack(ackFailure(errdefs.New(errdefs.CodeInternal, "internal server error")))
	}
}

// requireWrite guards the mutation events.
func requireWrite(c *Client) error {
	if !c.identity.CanWrite() {
		return errdefs.Forbidden("write permission required")
	}
	return nil
}

func (g *Gateway) handleCreatedFile(ctx context.Context, c *Client, data json.RawMessage, ack *acker) {
	var payload CreatedFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ack.Ack(ackFailure(errdefs.Validation("invalid payload")))
		return
	}
	if err := requireWrite(c); err != nil {
		ack.Ack(ackFailure(err))
		return
	}
	if err := content.ValidatePath(payload.Path); err != nil {
		ack.Ack(ackFailure(err))
		return
	}

	res, err := g.store.CreateEmpty(ctx, c.identity.StoreID, payload.Path)
	if err != nil {
		metrics.StoreErrors.Inc()
		logger.Error("created-file failed", "conn_id", c.id, "path", payload.Path, "error", err)
		ack.Ack(ackFailure(err))
		return
	}

	ack.Ack(ackSuccess(res.File.Hash))
	if res.Created {
		g.hub.broadcastExcept(c.identity.StoreID, c, EventFileCreated, NewFileCreatedEvent(res.File))
	}
}

func (g *Gateway) handleModifiedFile(ctx context.Context, c *Client, data json.RawMessage, ack *acker) {
	var payload ModifiedFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ack.Ack(ackFailure(errdefs.Validation("invalid payload")))
		return
	}
	if err := requireWrite(c); err != nil {
		ack.Ack(ackFailure(err))
		return
	}
	if err := content.ValidatePath(payload.Path); err != nil {
		ack.Ack(ackFailure(err))
		return
	}
	if err := content.ValidateContent(payload.Content); err != nil {
		ack.Ack(ackFailure(err))
		return
	}

	res, err := g.store.Upsert(ctx, c.identity.StoreID, payload.Path, payload.Content)
	if err != nil {
		metrics.StoreErrors.Inc()
		logger.Error("modified-file failed", "conn_id", c.id, "path", payload.Path, "error", err)
		ack.Ack(ackFailure(err))
		return
	}

	ack.Ack(ackSuccess(res.File.Hash))
	if res.Created {
		g.hub.broadcastExcept(c.identity.StoreID, c, EventFileCreated, NewFileCreatedEvent(res.File))
	} else {
		g.hub.broadcastExcept(c.identity.StoreID, c, EventFileModified, NewFileModifiedEvent(res.File))
	}
}

func (g *Gateway) handleDeletedFile(ctx context.Context, c *Client, data json.RawMessage, ack *acker) {
	var payload DeletedFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ack.Ack(ackFailure(errdefs.Validation("invalid payload")))
		return
	}
	if err := requireWrite(c); err != nil {
		ack.Ack(ackFailure(err))
		return
	}
	if err := content.ValidatePath(payload.Path); err != nil {
		ack.Ack(ackFailure(err))
		return
	}

	deleted, err := g.store.SoftDelete(ctx, c.identity.StoreID, payload.Path)
	if err != nil {
		metrics.StoreErrors.Inc()
		logger.Error("deleted-file failed", "conn_id", c.id, "path", payload.Path, "error", err)
		ack.Ack(ackFailure(err))
		return
	}

	// A missing or already deleted path still acks success; there is just
	// nothing to broadcast.
	ack.Ack(ackSuccess(""))
	if deleted {
		g.hub.broadcastExcept(c.identity.StoreID, c, EventFileDeleted, FileDeletedEvent{
			Path:      payload.Path,
			DeletedAt: time.Now().UTC(),
		})
	}
}

func (g *Gateway) handleRenamedFile(ctx context.Context, c *Client, data json.RawMessage, ack *acker) {
	var payload RenamedFilePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		ack.Ack(ackFailure(errdefs.Validation("invalid payload")))
		return
	}
	if err := requireWrite(c); err != nil {
		ack.Ack(ackFailure(err))
		return
	}
	if err := content.ValidatePath(payload.OldPath); err != nil {
		ack.Ack(ackFailure(err))
		return
	}
	if err := content.ValidatePath(payload.NewPath); err != nil {
		ack.Ack(ackFailure(err))
		return
	}

	res, err := g.store.Rename(ctx, c.identity.StoreID, payload.OldPath, payload.NewPath)
	if err != nil {
		metrics.StoreErrors.Inc()
		logger.Error("renamed-file failed",
			"conn_id", c.id, "old_path", payload.OldPath, "new_path", payload.NewPath, "error", err)
		ack.Ack(ackFailure(err))
		return
	}

	ack.Ack(ackSuccess(res.File.Hash))
	if res.Created {
		g.hub.broadcastExcept(c.identity.StoreID, c, EventFileCreated, NewFileCreatedEvent(res.File))
	} else {
		g.hub.broadcastExcept(c.identity.StoreID, c, EventFileRenamed,
			NewFileRenamedEvent(payload.OldPath, res.File))
	}
}
