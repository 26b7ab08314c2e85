// Package events implements the transport layer: a framed, ordered,
// bidirectional WebSocket channel between client and engine, one
// connection per session. The ConnectionManager is a single-process
// broadcaster — there is no cross-process fan-out in this domain, so
// there's no Postgres NOTIFY/LISTEN (or equivalent) half to it.
package events

// ClientMessage is the JSON structure for client → server frames.
type ClientMessage struct {
	Type            string `json:"type"`
	SessionID       string `json:"sessionId,omitempty"`
	ResumeFromIndex *int   `json:"resumeFromIndex,omitempty"`
	Text            string `json:"text,omitempty"`
	SourceKind      string `json:"sourceKind,omitempty"`
}

// Client → server frame types.
const (
	ClientMessageHello        = "hello"
	ClientMessageUserMessage  = "user_message"
	ClientMessageLeaveSession = "leave_session"
	ClientMessageAbandon      = "abandon"
	ClientMessageComplete     = "complete"
)

// Source kinds for a user_message frame.
const (
	SourceKindVoice = "voice"
	SourceKindTyped = "typed"
)

// Server → client frame types.
const (
	ServerMessageSessionStarted      = "session_started"
	ServerMessageUserMessageAccepted = "user_message_accepted"
	ServerMessageAssistantToken      = "assistant_token"
	ServerMessageAssistantComplete   = "assistant_complete"
	ServerMessagePointRecalled       = "point_recalled"
	ServerMessageRabbitholeEntered   = "rabbithole_entered"
	ServerMessageRabbitholeReturned  = "rabbithole_returned"
	ServerMessageAllPointsRecalled   = "all_points_recalled"
	ServerMessageSessionCompleted    = "session_completed"
	ServerMessageSessionPaused       = "session_paused"
	ServerMessageSessionAbandoned    = "session_abandoned"
	ServerMessageError               = "error"
	ServerMessageBusy                = "busy"
)

// ServerMessage is the JSON structure for server → client frames. All
// payload fields are optional; only the ones relevant to Type are set.
type ServerMessage struct {
	Type string `json:"type"`

	// session_started
	TotalPoints         int `json:"totalPoints,omitempty"`
	RecalledCount       int `json:"recalledCount,omitempty"`
	OpeningMessageIndex int `json:"openingMessageIndex,omitempty"`

	// user_message_accepted
	MessageIndex int          `json:"messageIndex,omitempty"`
	DisplayText  string       `json:"displayText,omitempty"`
	Corrections  []Correction `json:"corrections,omitempty"`

	// assistant_token
	Delta string `json:"delta,omitempty"`

	// point_recalled / all_points_recalled reuse TotalPoints/RecalledCount
	PointID string `json:"pointId,omitempty"`

	// rabbithole_entered / rabbithole_returned
	Topic               string `json:"topic,omitempty"`
	Depth               int    `json:"depth,omitempty"`
	TriggerMessageIndex int    `json:"triggerMessageIndex,omitempty"`
	ReturnMessageIndex  int    `json:"returnMessageIndex,omitempty"`

	// session_completed
	MetricsSummary any `json:"metricsSummary,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Correction mirrors pkg/transcription.Correction for wire encoding
// without importing that package into the transport layer.
type Correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}
