// Package rabbithole implements the tangent-conversation detector and
// agent: a cheap-model classifier that decides when a student's turn
// has wandered off the recall checklist, and an isolated exploratory
// agent that handles the digression without ever touching the parent
// session's transcript.
package rabbithole

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recallhq/engine/pkg/llm"
)

// DefaultEnterThreshold and DefaultReturnThreshold are the default
// rabbithole confidence thresholds.
const (
	DefaultEnterThreshold  = 0.7
	DefaultReturnThreshold = 0.6
)

// EnterDecision is the detector's verdict on whether the latest user
// turn opened a tangent.
type EnterDecision struct {
	Enter      bool
	Topic      string
	Confidence float64
}

// ReturnDecision is the detector's verdict on whether a turn inside an
// open rabbithole has returned to the main recall flow.
type ReturnDecision struct {
	ReturnToMain bool
	Confidence   float64
}

// Detector classifies conversation turns using a cheap, low-latency LLM
// binding dedicated to this purpose (never the tutor's client).
type Detector struct {
	client          llm.Client
	model           string
	enterThreshold  float64
	returnThreshold float64
	logger          *slog.Logger
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithEnterThreshold overrides DefaultEnterThreshold.
func WithEnterThreshold(threshold float64) DetectorOption {
	return func(d *Detector) { d.enterThreshold = threshold }
}

// WithReturnThreshold overrides DefaultReturnThreshold.
func WithReturnThreshold(threshold float64) DetectorOption {
	return func(d *Detector) { d.returnThreshold = threshold }
}

// WithDetectorLogger overrides the default slog logger.
func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger }
}

// NewDetector creates a Detector bound to a dedicated cheap-model client.
func NewDetector(client llm.Client, model string, opts ...DetectorOption) *Detector {
	d := &Detector{
		client:          client,
		model:           model,
		enterThreshold:  DefaultEnterThreshold,
		returnThreshold: DefaultReturnThreshold,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type rawEnter struct {
	Enter      bool    `json:"enter"`
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
}

type rawReturn struct {
	ReturnToMain bool    `json:"return_to_main"`
	Confidence   float64 `json:"confidence"`
}

// DetectEnter decides whether the last user turn opened a tangent. A
// classifier failure degrades to "no, stay on task" rather than
// propagating an error into the turn loop.
func (d *Detector) DetectEnter(ctx context.Context, conversationTail string, lastUserTurn string) EnterDecision {
	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: enterSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Conversation so far:\n%s\n\nLatest student message:\n%s", conversationTail, lastUserTurn)},
	}

	resp, err := d.complete(ctx, messages)
	if err != nil {
		d.logger.Warn("rabbithole enter detection failed", "error", err)
		return EnterDecision{}
	}

	var raw rawEnter
	if err := parseJSON(resp.Content, &raw); err != nil {
		d.logger.Warn("rabbithole enter detection did not parse", "error", err)
		return EnterDecision{}
	}
	if !raw.Enter || raw.Confidence < d.enterThreshold {
		return EnterDecision{}
	}
	return EnterDecision{Enter: true, Topic: raw.Topic, Confidence: raw.Confidence}
}

// DetectReturn decides whether a turn inside an open rabbithole has
// returned to the main recall flow.
func (d *Detector) DetectReturn(ctx context.Context, rabbitholeHistory string, lastUserTurn string) ReturnDecision {
	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: returnSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Tangent conversation so far:\n%s\n\nLatest student message:\n%s", rabbitholeHistory, lastUserTurn)},
	}

	resp, err := d.complete(ctx, messages)
	if err != nil {
		d.logger.Warn("rabbithole return detection failed", "error", err)
		return ReturnDecision{}
	}

	var raw rawReturn
	if err := parseJSON(resp.Content, &raw); err != nil {
		d.logger.Warn("rabbithole return detection did not parse", "error", err)
		return ReturnDecision{}
	}
	if !raw.ReturnToMain || raw.Confidence < d.returnThreshold {
		return ReturnDecision{}
	}
	return ReturnDecision{ReturnToMain: true, Confidence: raw.Confidence}
}

func (d *Detector) complete(ctx context.Context, messages []llm.ConversationMessage) (llm.CompleteOutput, error) {
	temperature := float32(0.1)
	maxTokens := int32(200)
	return d.client.Complete(ctx, llm.CompleteInput{
		Model:       d.model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}

const enterSystemPrompt = `You detect when a student studying recall flashcards has gone off on a
tangent unrelated to answering the current checklist item. Respond with
ONLY a JSON object, no markdown:
{"enter": <bool>, "topic": "<short topic label>", "confidence": <0-1>}
"enter" is true only if the student is asking about something other than
the material being tested, not merely phrasing their answer as a question.`

const returnSystemPrompt = `You are monitoring a tangent conversation that branched off a recall
study session. Decide if the student's latest message signals they are
ready to return to the study session. Respond with ONLY a JSON object,
no markdown:
{"return_to_main": <bool>, "confidence": <0-1>}`

func parseJSON(text string, out any) error {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)
	return json.Unmarshal([]byte(cleaned), out)
}
