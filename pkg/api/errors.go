package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/recallhq/engine/pkg/events"
	"github.com/recallhq/engine/pkg/session"
)

// mapEngineError translates a session.EngineError into an HTTP error
// response, keyed off the engine's own error taxonomy.
func mapEngineError(err error) *echo.HTTPError {
	var engErr *session.EngineError
	if errors.As(err, &engErr) {
		switch engErr.Kind {
		case session.ErrKindNotFound:
			return echo.NewHTTPError(http.StatusNotFound, engErr.Message)
		case session.ErrKindConflict, session.ErrKindNoDuePoints:
			return echo.NewHTTPError(http.StatusConflict, engErr.Message)
		case session.ErrKindInvalidRequest:
			return echo.NewHTTPError(http.StatusBadRequest, engErr.Message)
		case session.ErrKindAuthentication:
			return echo.NewHTTPError(http.StatusUnauthorized, engErr.Message)
		case session.ErrKindRateLimit:
			return echo.NewHTTPError(http.StatusTooManyRequests, engErr.Message)
		default:
			slog.Error("unexpected engine error", "kind", engErr.Kind, "error", engErr.Message)
			return echo.NewHTTPError(http.StatusInternalServerError, engErr.Message)
		}
	}

	slog.Error("unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// engineErrorFrame translates a session.EngineError into an error
// ServerMessage frame for delivery over an already-open WebSocket,
// where an HTTP status code has no meaning. An EngineError keeps its own
// kind as the code; any other error becomes code "unknown" with a generic
// "internal error" message rather than leaking an internal message.
func engineErrorFrame(err error) events.ServerMessage {
	var engErr *session.EngineError
	if errors.As(err, &engErr) {
		return events.ServerMessage{Type: events.ServerMessageError, Code: string(engErr.Kind), Message: engErr.Message}
	}
	return events.ServerMessage{Type: events.ServerMessageError, Code: string(session.ErrKindUnknown), Message: "internal error"}
}
