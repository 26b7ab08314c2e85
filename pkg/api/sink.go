package api

import (
	"log/slog"

	"github.com/recallhq/engine/pkg/events"
)

// connManagerSink adapts events.ConnectionManager to session.EventSink:
// the engine only knows about recall-set keys, never the underlying
// WebSocket connection.
type connManagerSink struct {
	cm     *events.ConnectionManager
	logger *slog.Logger
}

// NewConnManagerSink adapts a ConnectionManager into a session.EventSink
// for wiring into session.Deps at startup.
func NewConnManagerSink(cm *events.ConnectionManager, logger *slog.Logger) *connManagerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &connManagerSink{cm: cm, logger: logger}
}

// Emit implements session.EventSink. A missing connection (the client
// disconnected between the engine deciding to emit and the send) is
// logged and dropped rather than surfaced as an error — the turn loop
// has already persisted whatever state mattered.
func (s *connManagerSink) Emit(key string, msg events.ServerMessage) {
	conn, ok := s.cm.Connection(key)
	if !ok {
		s.logger.Debug("dropped server frame: no active connection", "key", key, "type", msg.Type)
		return
	}
	if err := s.cm.Send(conn, msg); err != nil {
		s.logger.Warn("failed to send server frame", "key", key, "type", msg.Type, "error", err)
	}
}
