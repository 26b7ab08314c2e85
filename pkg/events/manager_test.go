package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestManager(t *testing.T) (*ConnectionManager, *httptest.Server, func(sessionID string) *Connection) {
	t.Helper()

	manager := NewConnectionManager(5 * time.Second)
	var mu sync.Mutex
	var lastRegistered *Connection
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		// net/http cancels r.Context() as soon as this handler returns, so
		// the connection is bound to a context that outlives the handler.
		registered := manager.Register(context.Background(), r.URL.Query().Get("session"), conn)
		mu.Lock()
		lastRegistered = registered
		mu.Unlock()
	}))
	t.Cleanup(server.Close)

	registerFor := func(sessionID string) *Connection {
		mu.Lock()
		lastRegistered = nil
		mu.Unlock()
		_ = connectWS(t, server, sessionID)
		var got *Connection
		require.Eventually(t, func() bool {
			mu.Lock()
			got = lastRegistered
			mu.Unlock()
			return got != nil
		}, time.Second, time.Millisecond)
		return got
	}
	return manager, server, registerFor
}

func connectWS(t *testing.T, server *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[len("http"):] + "?session=" + sessionID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestConnectionManager_RegisterTracksBySession(t *testing.T) {
	manager, _, registerFor := setupTestManager(t)

	registerFor("sess_1")
	require.Eventually(t, func() bool { return manager.ActiveConnections() == 1 }, time.Second, time.Millisecond)

	c, ok := manager.Connection("sess_1")
	require.True(t, ok)
	assert.Equal(t, "sess_1", c.SessionID)
}

func TestConnectionManager_ReconnectSupersedesOldConnection(t *testing.T) {
	manager, _, registerFor := setupTestManager(t)

	first := registerFor("sess_1")
	second := registerFor("sess_1")

	assert.NotEqual(t, first.ID, second.ID)
	current, ok := manager.Connection("sess_1")
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)

	select {
	case <-first.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded connection's context should have been cancelled")
	}
}

func TestConnectionManager_SendWritesJSON(t *testing.T) {
	manager, server, registerFor := setupTestManager(t)
	clientConn := connectWS(t, server, "sess_1")
	_ = registerFor
	require.Eventually(t, func() bool {
		_, ok := manager.Connection("sess_1")
		return ok
	}, time.Second, time.Millisecond)

	c, _ := manager.Connection("sess_1")
	require.NoError(t, manager.Send(c, ServerMessage{Type: ServerMessageAssistantToken, Delta: "hi"}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := clientConn.Read(ctx)
	require.NoError(t, err)

	var msg ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, ServerMessageAssistantToken, msg.Type)
	assert.Equal(t, "hi", msg.Delta)
}

func TestConnectionManager_UnregisterRemovesCurrentOnly(t *testing.T) {
	manager, _, registerFor := setupTestManager(t)

	first := registerFor("sess_1")
	manager.Unregister(first)

	_, ok := manager.Connection("sess_1")
	assert.False(t, ok)
}

func TestConnectionManager_UnregisterStaleConnectionIsNoop(t *testing.T) {
	manager, _, registerFor := setupTestManager(t)

	first := registerFor("sess_1")
	second := registerFor("sess_1")

	manager.Unregister(first)

	current, ok := manager.Connection("sess_1")
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
}

func TestConnectionManager_ReadParsesClientMessage(t *testing.T) {
	manager, server, registerFor := setupTestManager(t)
	clientConn := connectWS(t, server, "sess_1")
	_ = registerFor
	require.Eventually(t, func() bool {
		_, ok := manager.Connection("sess_1")
		return ok
	}, time.Second, time.Millisecond)
	c, _ := manager.Connection("sess_1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, err := json.Marshal(ClientMessage{Type: ClientMessageUserMessage, Text: "hello", SourceKind: SourceKindTyped})
	require.NoError(t, err)
	require.NoError(t, clientConn.Write(ctx, websocket.MessageText, payload))

	msg, err := manager.Read(c)
	require.NoError(t, err)
	assert.Equal(t, ClientMessageUserMessage, msg.Type)
	assert.Equal(t, "hello", msg.Text)
}
