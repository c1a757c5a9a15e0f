package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/syncbox/internal/auth"
	"github.com/marmos91/syncbox/pkg/content"
	"github.com/marmos91/syncbox/pkg/errdefs"
	"github.com/marmos91/syncbox/pkg/models"
	"github.com/marmos91/syncbox/pkg/store"
)

type testEnv struct {
	gateway  *Gateway
	store    *store.GORMStore
	server   *httptest.Server
	tenantID string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tenantID, err := s.CreateStore(context.Background(), &models.Store{Name: "t"})
	require.NoError(t, err)

	gw := NewGateway(s, auth.NewValidator(s, ""), []string{"*"})
	srv := httptest.NewServer(http.HandlerFunc(gw.HandleSocket))
	t.Cleanup(srv.Close)

	return &testEnv{gateway: gw, store: s, server: srv, tenantID: tenantID}
}

// mintKey creates a key with the given permissions and returns the plaintext.
func (e *testEnv) mintKey(t *testing.T, permissions string) string {
	t.Helper()

	plaintext, err := auth.GenerateKey(e.tenantID)
	require.NoError(t, err)
	_, err = e.store.CreateAPIKey(context.Background(), &models.APIKey{
		StoreID:     e.tenantID,
		Name:        "test",
		KeyPrefix:   auth.DisplayPrefix(plaintext),
		KeyHash:     auth.HashKey(plaintext),
		Permissions: permissions,
	})
	require.NoError(t, err)
	return plaintext
}

// dial opens a channel connection authenticated with the given key.
func (e *testEnv) dial(t *testing.T, apiKey string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/?apiKey=" + apiKey
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type testFrame struct {
	Ack   *uint64         `json:"ack"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, id uint64, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"id": id, "event": event, "data": data}))
}

func readFrame(t *testing.T, conn *websocket.Conn) testFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame testFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readAck(t *testing.T, conn *websocket.Conn, id uint64) AckEnvelope {
	t.Helper()
	frame := readFrame(t, conn)
	require.NotNil(t, frame.Ack, "expected ack, got event %q", frame.Event)
	require.Equal(t, id, *frame.Ack)
	var env AckEnvelope
	require.NoError(t, json.Unmarshal(frame.Data, &env))
	return env
}

// expectSilence asserts nothing arrives on the connection for a short window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no frame")
	netErr, ok := err.(interface{ Timeout() bool })
	require.True(t, ok && netErr.Timeout(), "expected read timeout, got %v", err)
	// Clear the deadline for subsequent reads.
	require.NoError(t, conn.SetReadDeadline(time.Time{}))
}

func TestHandshakeRejectsBadKey(t *testing.T) {
	env := newTestEnv(t)

	conn := env.dial(t, "sk_store_abc123_invalid")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected policy violation close, got %v", err)
}

func TestCreatedFileIdempotence(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.dial(t, env.mintKey(t, "read,write"))
	p2 := env.dial(t, env.mintKey(t, "read,write"))
	time.Sleep(50 * time.Millisecond) // let p2 join the room

	send(t, p1, 1, EventCreatedFile, CreatedFilePayload{Path: "notes/a.md"})
	env1 := readAck(t, p1, 1)
	require.True(t, env1.Success)
	assert.Equal(t, content.EmptyHash, env1.Hash)

	// Peer receives the broadcast with empty content and derived metadata.
	frame := readFrame(t, p2)
	assert.Equal(t, EventFileCreated, frame.Event)
	var ev FileCreatedEvent
	require.NoError(t, json.Unmarshal(frame.Data, &ev))
	assert.Equal(t, "notes/a.md", ev.Path)
	assert.Empty(t, ev.Content)
	assert.Equal(t, int64(0), ev.Size)
	assert.Equal(t, "md", ev.Extension)
	assert.False(t, ev.IsBinary)

	// Replaying the create discovers the record: same ack, no broadcast.
	send(t, p1, 2, EventCreatedFile, CreatedFilePayload{Path: "notes/a.md"})
	env2 := readAck(t, p1, 2)
	require.True(t, env2.Success)
	assert.Equal(t, env1.Hash, env2.Hash)
	expectSilence(t, p2)
}

func TestSenderExclusion(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.dial(t, env.mintKey(t, "read,write"))
	p2 := env.dial(t, env.mintKey(t, "read,write"))
	time.Sleep(50 * time.Millisecond)

	send(t, p1, 7, EventModifiedFile, ModifiedFilePayload{Path: "x.md", Content: "v"})
	ack := readAck(t, p1, 7)
	require.True(t, ack.Success)
	assert.Equal(t, content.Hash("v"), ack.Hash)

	// P2 gets exactly one file-created (new record); P1 gets nothing more.
	frame := readFrame(t, p2)
	assert.Equal(t, EventFileCreated, frame.Event)
	expectSilence(t, p2)
	expectSilence(t, p1)

	// A second modification of the now-existing record fans out as
	// file-modified.
	send(t, p1, 8, EventModifiedFile, ModifiedFilePayload{Path: "x.md", Content: "v2"})
	ack = readAck(t, p1, 8)
	require.True(t, ack.Success)

	frame = readFrame(t, p2)
	assert.Equal(t, EventFileModified, frame.Event)
	var ev FileModifiedEvent
	require.NoError(t, json.Unmarshal(frame.Data, &ev))
	assert.Equal(t, "v2", ev.Content)
	assert.Equal(t, content.Hash("v2"), ev.Hash)
}

func TestRequestPathBroadcastIncludesEveryone(t *testing.T) {
	env := newTestEnv(t)
	key := env.mintKey(t, "read,write")
	p1 := env.dial(t, key)
	p2 := env.dial(t, key)
	time.Sleep(50 * time.Millisecond)

	// Server-initiated fanout (the HTTP gateway path) has no sender to
	// exclude: both connections receive it, same-credential included.
	env.gateway.Hub().BroadcastToStore(env.tenantID, EventFileModified, FileModifiedEvent{
		Path: "y.md", Content: "w", Hash: content.Hash("w"), Size: 1,
		UpdatedAt: time.Now().UTC(),
	})

	for _, conn := range []*websocket.Conn{p1, p2} {
		frame := readFrame(t, conn)
		assert.Equal(t, EventFileModified, frame.Event)
	}
}

func TestTenantRoomIsolation(t *testing.T) {
	env := newTestEnv(t)
	otherTenant, err := env.store.CreateStore(context.Background(), &models.Store{Name: "other"})
	require.NoError(t, err)

	otherKey, err := auth.GenerateKey(otherTenant)
	require.NoError(t, err)
	_, err = env.store.CreateAPIKey(context.Background(), &models.APIKey{
		StoreID: otherTenant, Name: "o", KeyPrefix: auth.DisplayPrefix(otherKey),
		KeyHash: auth.HashKey(otherKey), Permissions: "read,write",
	})
	require.NoError(t, err)

	p1 := env.dial(t, env.mintKey(t, "read,write"))
	stranger := env.dial(t, otherKey)
	time.Sleep(50 * time.Millisecond)

	send(t, p1, 1, EventModifiedFile, ModifiedFilePayload{Path: "x.md", Content: "v"})
	require.True(t, readAck(t, p1, 1).Success)

	expectSilence(t, stranger)
}

func TestWritePermissionRequired(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.dial(t, env.mintKey(t, "read"))

	send(t, viewer, 1, EventModifiedFile, ModifiedFilePayload{Path: "x.md", Content: "v"})
	env1 := readAck(t, viewer, 1)
	require.False(t, env1.Success)
	require.NotNil(t, env1.Error)
	assert.Equal(t, string(errdefs.CodeForbidden), env1.Error.Code)
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.dial(t, env.mintKey(t, "read,write"))

	send(t, p1, 1, EventCreatedFile, CreatedFilePayload{Path: "bad<path>.md"})
	env1 := readAck(t, p1, 1)
	require.False(t, env1.Success)
	assert.Equal(t, string(errdefs.CodeValidation), env1.Error.Code)

	send(t, p1, 2, "made-up-event", map[string]string{})
	env2 := readAck(t, p1, 2)
	require.False(t, env2.Success)
	assert.Equal(t, string(errdefs.CodeValidation), env2.Error.Code)
}

func TestDeleteLifecycleOverChannel(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.dial(t, env.mintKey(t, "read,write"))
	p2 := env.dial(t, env.mintKey(t, "read,write"))
	time.Sleep(50 * time.Millisecond)

	send(t, p1, 1, EventModifiedFile, ModifiedFilePayload{Path: "x.md", Content: "v"})
	require.True(t, readAck(t, p1, 1).Success)
	readFrame(t, p2) // consume file-created

	send(t, p1, 2, EventDeletedFile, DeletedFilePayload{Path: "x.md"})
	ack := readAck(t, p1, 2)
	require.True(t, ack.Success)
	assert.Empty(t, ack.Hash, "delete acks carry no hash")

	frame := readFrame(t, p2)
	assert.Equal(t, EventFileDeleted, frame.Event)
	var ev FileDeletedEvent
	require.NoError(t, json.Unmarshal(frame.Data, &ev))
	assert.Equal(t, "x.md", ev.Path)
	assert.False(t, ev.DeletedAt.IsZero())

	// Deleting a missing path still succeeds, with nothing to fan out.
	send(t, p1, 3, EventDeletedFile, DeletedFilePayload{Path: "ghost.md"})
	require.True(t, readAck(t, p1, 3).Success)
	expectSilence(t, p2)
}

func TestRenameOverChannel(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.dial(t, env.mintKey(t, "read,write"))
	p2 := env.dial(t, env.mintKey(t, "read,write"))
	time.Sleep(50 * time.Millisecond)

	send(t, p1, 1, EventModifiedFile, ModifiedFilePayload{Path: "a.md", Content: "A"})
	require.True(t, readAck(t, p1, 1).Success)
	readFrame(t, p2)

	send(t, p1, 2, EventRenamedFile, RenamedFilePayload{OldPath: "a.md", NewPath: "b.md"})
	ack := readAck(t, p1, 2)
	require.True(t, ack.Success)
	assert.Equal(t, content.Hash("A"), ack.Hash)

	frame := readFrame(t, p2)
	assert.Equal(t, EventFileRenamed, frame.Event)
	var ev FileRenamedEvent
	require.NoError(t, json.Unmarshal(frame.Data, &ev))
	assert.Equal(t, "a.md", ev.OldPath)
	assert.Equal(t, "b.md", ev.NewPath)
	assert.Equal(t, "A", ev.Content)

	// Renaming a missing source creates an empty destination and fans
	// out as file-created.
	send(t, p1, 3, EventRenamedFile, RenamedFilePayload{OldPath: "ghost.md", NewPath: "c.md"})
	require.True(t, readAck(t, p1, 3).Success)
	frame = readFrame(t, p2)
	assert.Equal(t, EventFileCreated, frame.Event)
}

func TestRoomMembershipTracksDisconnect(t *testing.T) {
	env := newTestEnv(t)
	key := env.mintKey(t, "read,write")
	p1 := env.dial(t, key)
	env.dial(t, key)
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 2, env.gateway.Hub().RoomSize(env.tenantID))

	_ = p1.Close()
	require.Eventually(t, func() bool {
		return env.gateway.Hub().RoomSize(env.tenantID) == 1
	}, 2*time.Second, 20*time.Millisecond)
}
