package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/recallhq/engine/pkg/events"
)

// wsHandler upgrades the HTTP request to a WebSocket and drives the
// connection's read loop. The session key isn't known from the URL:
// the client opens a bare socket and sends hello{sessionId,
// resumeFromIndex?} as its first message, so the upgrade here must read
// that first frame itself before anything can be registered with the
// ConnectionManager.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.connManager == nil {
		return echo.NewHTTPError(503, "WebSocket not available")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.resolveWSOriginPatterns(),
	})
	if err != nil {
		return err
	}

	ctx := c.Request().Context()

	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusProtocolError, "expected hello frame")
		return nil
	}

	var hello events.ClientMessage
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != events.ClientMessageHello || hello.SessionID == "" {
		conn.Close(websocket.StatusPolicyViolation, "first frame must be hello with a sessionId")
		return nil
	}

	key := hello.SessionID
	connection := s.connManager.Register(ctx, key, conn)
	defer s.connManager.Unregister(connection)

	if err := s.engine.HandleClientMessage(ctx, key, hello); err != nil {
		s.logger.Warn("hello handling failed", "key", key, "error", err)
		_ = s.connManager.Send(connection, engineErrorFrame(err))
	}

	for {
		msg, err := s.connManager.Read(connection)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Debug("websocket read ended", "key", key, "error", err)
			}
			return nil
		}

		if err := s.engine.HandleClientMessage(ctx, key, msg); err != nil {
			s.logger.Warn("frame handling failed", "key", key, "type", msg.Type, "error", err)
			_ = s.connManager.Send(connection, engineErrorFrame(err))
		}
	}
}

// resolveWSOriginPatterns turns the configured allowlist into the
// coder/websocket OriginPatterns list. An empty allowlist means
// same-origin-only (the library's default when OriginPatterns is nil),
// a safe-by-default posture rather than skipping origin checks.
func (s *Server) resolveWSOriginPatterns() []string {
	if len(s.cfg.AllowedWSOrigins) == 0 {
		return nil
	}
	return s.cfg.AllowedWSOrigins
}
