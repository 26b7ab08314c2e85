package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// DefaultWriteTimeout bounds how long a single outbound send may block.
const DefaultWriteTimeout = 5 * time.Second

// Connection represents one WebSocket client bound to exactly one
// session: one socket per session, not a pub/sub channel registry.
// Outbound sends are serialized through sendMu so concurrent producers
// (the turn loop, a rabbithole agent, a timeout handler) never
// interleave writes on the same socket.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn

	sendMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionManager tracks the single active connection per session and
// serializes outbound delivery. There is no channel subscription
// registry or PG NOTIFY bridge: each session owns exactly one socket
// for its lifetime, and this process is the only one that needs to
// know about it.
type ConnectionManager struct {
	mu           sync.RWMutex
	bySession    map[string]*Connection
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager(writeTimeout time.Duration) *ConnectionManager {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &ConnectionManager{
		bySession:    make(map[string]*Connection),
		writeTimeout: writeTimeout,
		logger:       slog.Default(),
	}
}

// Register binds a freshly upgraded WebSocket to a session, replacing
// any prior connection for that session (a reconnect supersedes the old
// socket rather than stacking).
func (m *ConnectionManager) Register(parentCtx context.Context, sessionID string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &Connection{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Conn:      conn,
		ctx:       ctx,
		cancel:    cancel,
	}

	m.mu.Lock()
	if old, ok := m.bySession[sessionID]; ok {
		old.cancel()
	}
	m.bySession[sessionID] = c
	m.mu.Unlock()

	return c
}

// Unregister removes a connection if it is still the active one for its
// session (a superseded connection removing itself on close must not
// clobber the one that replaced it).
func (m *ConnectionManager) Unregister(c *Connection) {
	m.mu.Lock()
	if current, ok := m.bySession[c.SessionID]; ok && current.ID == c.ID {
		delete(m.bySession, c.SessionID)
	}
	m.mu.Unlock()
	c.cancel()
}

// Connection returns the active connection for a session, if any.
func (m *ConnectionManager) Connection(sessionID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bySession[sessionID]
	return c, ok
}

// ActiveConnections returns the count of sessions with a live socket.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySession)
}

// Send serializes and writes one server message, enforcing the write
// timeout so a stalled client cannot block the turn loop indefinitely.
func (m *ConnectionManager) Send(c *Connection, msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.sendRaw(c, data)
}

func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	writeCtx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.Conn.Write(writeCtx, websocket.MessageText, data)
}

// Read blocks for the next client frame on this connection.
func (m *ConnectionManager) Read(c *Connection) (ClientMessage, error) {
	_, data, err := c.Conn.Read(c.ctx)
	if err != nil {
		return ClientMessage{}, err
	}
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}
