package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/recallhq/engine/pkg/llm"
)

// PointText is the subset of a recall point's text the terminology
// extractor reads: a point's content and the context it was created
// with.
type PointText struct {
	Content string
	Context string
}

type rawTerminology struct {
	Terms []string `json:"terms"`
}

// ExtractTerminology asks the LLM to enumerate the technical vocabulary
// across a recall set's points, once at session start. On failure it
// returns an empty list rather than blocking session start.
func ExtractTerminology(ctx context.Context, client llm.Client, model string, points []PointText) []string {
	if len(points) == 0 {
		return nil
	}

	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "- %s (%s)\n", p.Content, p.Context)
	}

	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: terminologySystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}
	resp, err := client.Complete(ctx, llm.CompleteInput{Model: model, Messages: messages})
	if err != nil {
		return nil
	}

	var raw rawTerminology
	if err := json.Unmarshal([]byte(stripFence(resp.Content)), &raw); err != nil {
		return nil
	}
	return raw.Terms
}

func stripFence(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

const terminologySystemPrompt = `Enumerate the technical vocabulary (domain-specific terms, jargon,
proper nouns) that appear across the following recall points. Respond
with ONLY a JSON object, no markdown:
{"terms": ["<term>", ...]}`
