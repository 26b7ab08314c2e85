package session

import (
	"fmt"
	"strings"

	"github.com/recallhq/engine/pkg/llm"
)

// TokenCallback is invoked once per text delta as the tutor's response
// streams in, emitting an assistant_token frame for each. Deltas are
// not accumulated by the callback — the caller concatenates locally.
type TokenCallback func(delta string)

// streamedResponse is the fully-collected result of one streaming LLM
// call.
type streamedResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// collectStream drains a chunk channel into a complete streamedResponse,
// invoking callback for every TextChunk as it arrives. Grounded on
// pkg/agent/controller/streaming.go's collectStreamWithCallback, trimmed
// to this domain's chunk set (no thinking/tool-call/grounding variants —
// the tutor has no tool-calling surface).
func collectStream(stream <-chan llm.Chunk, callback TokenCallback) (streamedResponse, error) {
	var text strings.Builder
	var usage streamedResponse

	for chunk := range stream {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			text.WriteString(c.Content)
			if callback != nil && c.Content != "" {
				callback(c.Content)
			}
		case *llm.UsageChunk:
			usage.InputTokens = c.InputTokens
			usage.OutputTokens = c.OutputTokens
		case *llm.ErrorChunk:
			return streamedResponse{Text: text.String()}, fmt.Errorf("llm stream error: %s (retryable=%v)", c.Message, c.Retryable)
		}
	}

	usage.Text = text.String()
	return usage, nil
}
