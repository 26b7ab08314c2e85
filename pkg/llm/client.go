// Package llm defines the engine's boundary to the external language
// model provider: a streaming call for the tutor's conversational turn
// and a non-streaming call for the evaluator and transcription pipeline.
package llm

import "context"

// Conversation message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one turn of conversation sent to the model.
type ConversationMessage struct {
	Role    string
	Content string
}

// GenerateInput is a streaming tutor-turn request.
type GenerateInput struct {
	SessionID   string
	Messages    []ConversationMessage
	Model       string
	Temperature *float32
	MaxTokens   *int32
}

// CompleteInput is a non-streaming request used by the evaluator and the
// transcription pipeline, each bound to their own cheaper model.
type CompleteInput struct {
	SessionID   string
	Messages    []ConversationMessage
	Model       string
	Temperature *float32
	MaxTokens   *int32
}

// CompleteOutput is the full response to a non-streaming call.
type CompleteOutput struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is the engine-side interface to the LLM provider. Generate
// streams a tutor turn chunk by chunk; Complete blocks for a single
// response and is used where the caller must parse the whole answer
// before proceeding (evaluator, transcription).
type Client interface {
	// Generate sends a conversation and returns a channel of streaming
	// chunks. The channel is closed when the stream ends; a terminal
	// ErrorChunk may be the last value sent before closing.
	Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error)

	// Complete sends a conversation and blocks for the full response.
	Complete(ctx context.Context, input CompleteInput) (CompleteOutput, error)

	// Close releases the underlying connection.
	Close() error
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

// Streaming chunk kinds.
const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeUsage ChunkType = "usage"
	ChunkTypeError ChunkType = "error"
)

// Chunk is the interface implemented by every streaming chunk type.
type Chunk interface {
	chunkType() ChunkType
}

// TextChunk carries a fragment of the model's streamed text response.
type TextChunk struct{ Content string }

// UsageChunk reports token consumption once the stream completes.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals a terminal error from the provider.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *UsageChunk) chunkType() ChunkType { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }
