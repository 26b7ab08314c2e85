package session

import (
	"context"
	"errors"
	"strings"
)

// ErrKind is the engine-wide LLM/session failure taxonomy.
type ErrKind string

// Error kinds recognized by the engine and surfaced to the client.
const (
	ErrKindAuthentication ErrKind = "authentication"
	ErrKindRateLimit      ErrKind = "rate_limit"
	ErrKindInvalidRequest ErrKind = "invalid_request"
	ErrKindServerError    ErrKind = "server_error"
	ErrKindNetwork        ErrKind = "network"
	ErrKindTimeout        ErrKind = "timeout"
	ErrKindParse          ErrKind = "parse"
	ErrKindNotFound       ErrKind = "not_found"
	ErrKindConflict       ErrKind = "conflict"
	ErrKindNoDuePoints    ErrKind = "no_due_points"
	ErrKindUnknown        ErrKind = "unknown"
)

// EngineError pairs a taxonomy kind with a human-readable message, used
// for the failures the core must surface itself (session start, tutor
// stream) rather than swallow.
type EngineError struct {
	Kind    ErrKind
	Message string
}

func (e *EngineError) Error() string { return e.Message }

func newEngineError(kind ErrKind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// retryableForTutor reports whether the tutor's streaming path should retry
// once before surfacing the failure to the client: retry once on
// rate_limit/server_error, never on authentication/invalid_request, and
// not for the tutor on network/timeout since the stream is already
// user-visible.
func (k ErrKind) retryableForTutor() bool {
	return k == ErrKindRateLimit || k == ErrKindServerError
}

// classifyLLMErr does best-effort categorization of an error returned
// by an llm.Client call. Providers in this codebase surface errors as
// plain wrapped strings rather than a structured status type, so this
// falls back to context cancellation checks and substring sniffing —
// the same shape real deployments reach for before a provider SDK grows
// typed errors.
func classifyLLMErr(err error) ErrKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrKindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "401", "403", "unauthoriz", "authentic", "api key", "permission"):
		return ErrKindAuthentication
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return ErrKindRateLimit
	case containsAny(msg, "400", "invalid request", "invalid_request"):
		return ErrKindInvalidRequest
	case containsAny(msg, "500", "502", "503", "504", "internal server", "server error"):
		return ErrKindServerError
	case containsAny(msg, "timeout", "deadline exceeded"):
		return ErrKindTimeout
	case containsAny(msg, "connection refused", "connection reset", "no such host", "network", "eof"):
		return ErrKindNetwork
	default:
		return ErrKindUnknown
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
