// Package evaluator implements the Recall Evaluator: after every user
// turn it decides which unchecked recall points the student's answer
// demonstrated, using a single non-streaming LLM call whose JSON output
// is parsed tolerantly and never allowed to fail the session.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recallhq/engine/pkg/llm"
	"github.com/recallhq/engine/pkg/models"
)

// DefaultConfidenceThreshold is the minimum confidence an LLM-reported
// demonstration needs to be accepted.
const DefaultConfidenceThreshold = 0.5

// DefaultTemperature and DefaultMaxTokens bound the evaluator's LLM call
// to a small, deterministic-leaning budget.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 512
)

// RecentMessage is one turn of conversation fed to the evaluator as
// context, bounded to a small trailing window by default.
type RecentMessage struct {
	Role    models.MessageRole
	Content string
}

// ChecklistPoint is the subset of a RecallPoint the evaluator needs to
// judge whether it was demonstrated.
type ChecklistPoint struct {
	ID      string
	Content string
	Context string
}

// Input bundles everything Evaluate needs for one evaluation call.
type Input struct {
	RecentMessages       []RecentMessage
	UncheckedPoints      []ChecklistPoint
	JustRecalledPointIDs []string
	RecallSetContext     string
}

// Demonstration is one point the evaluator judged the student to have
// shown understanding of in the most recent turn.
type Demonstration struct {
	PointID           string
	Confidence        float64
	Rating            models.Rating
	Reasoning         string
	MessageIndexStart int
	MessageIndexEnd   int
}

// Evaluation is the result of one Evaluate call.
type Evaluation struct {
	Demonstrated    []Demonstration
	OverallFeedback string
}

// Evaluator calls an LLM to score recall demonstrations.
type Evaluator struct {
	client              llm.Client
	model               string
	confidenceThreshold float64
	temperature         float64
	maxTokens           int
	logger              *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConfidenceThreshold overrides DefaultConfidenceThreshold.
func WithConfidenceThreshold(threshold float64) Option {
	return func(e *Evaluator) { e.confidenceThreshold = threshold }
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(temperature float64) Option {
	return func(e *Evaluator) { e.temperature = temperature }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// New creates an Evaluator bound to a dedicated LLM client (never the
// tutor's own client/conversation) and model.
func New(client llm.Client, model string, opts ...Option) *Evaluator {
	e := &Evaluator{
		client:              client,
		model:               model,
		confidenceThreshold: DefaultConfidenceThreshold,
		temperature:         DefaultTemperature,
		maxTokens:           DefaultMaxTokens,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// rawDemonstration is the wire shape the LLM is instructed to emit.
type rawDemonstration struct {
	PointID    string  `json:"point_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type rawEvaluation struct {
	Demonstrated    []rawDemonstration `json:"demonstrated"`
	OverallFeedback string             `json:"overall_feedback"`
}

// Evaluate assembles a checklist prompt, calls the LLM once in
// non-streaming mode, and derives ratings for every accepted
// demonstration. It never returns an error that should abort the
// session: LLM and parse failures degrade to an empty Evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, input Input) Evaluation {
	if len(input.UncheckedPoints) == 0 {
		return Evaluation{}
	}

	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: e.systemPrompt()},
		{Role: llm.RoleUser, Content: e.userPrompt(input)},
	}

	temperature := float32(e.temperature)
	maxTokens := int32(e.maxTokens)
	resp, err := e.client.Complete(ctx, llm.CompleteInput{
		Model:       e.model,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		e.logger.Warn("evaluator LLM call failed", "error", err)
		return Evaluation{}
	}

	parsed, err := parseEvaluation(resp.Content)
	if err != nil {
		e.logger.Warn("evaluator response did not parse as JSON", "error", err)
		return Evaluation{}
	}

	unchecked := make(map[string]bool, len(input.UncheckedPoints))
	for _, p := range input.UncheckedPoints {
		unchecked[p.ID] = true
	}
	justRecalled := make(map[string]bool, len(input.JustRecalledPointIDs))
	for _, id := range input.JustRecalledPointIDs {
		justRecalled[id] = true
	}

	lastIndex := len(input.RecentMessages) - 1
	result := Evaluation{OverallFeedback: parsed.OverallFeedback}
	for _, raw := range parsed.Demonstrated {
		if !unchecked[raw.PointID] || justRecalled[raw.PointID] {
			continue
		}
		if raw.Confidence < e.confidenceThreshold {
			continue
		}
		result.Demonstrated = append(result.Demonstrated, Demonstration{
			PointID:           raw.PointID,
			Confidence:        raw.Confidence,
			Rating:            models.RatingFromConfidence(raw.Confidence),
			Reasoning:         raw.Reasoning,
			MessageIndexStart: max(lastIndex, 0),
			MessageIndexEnd:   max(lastIndex, 0),
		})
	}
	return result
}

func (e *Evaluator) systemPrompt() string {
	return "You are a recall evaluator for a spaced-repetition tutoring session. " +
		"Given a checklist of facts the student should demonstrate and the most " +
		"recent conversation turn, decide which checklist items the student's " +
		"answer actually demonstrated. Respond with ONLY a JSON object, no " +
		"markdown, no commentary, in this exact shape:\n" +
		`{"demonstrated":[{"point_id":"<id>","confidence":<0-1>,"reasoning":"<why>"}],"overall_feedback":"<short note>"}` +
		"\nIf nothing was demonstrated, return an empty demonstrated array. " +
		"Never invent a point_id that is not in the checklist."
}

func (e *Evaluator) userPrompt(input Input) string {
	var b strings.Builder
	b.WriteString("Recall set context:\n")
	b.WriteString(input.RecallSetContext)
	b.WriteString("\n\nChecklist:\n")
	for _, p := range input.UncheckedPoints {
		fmt.Fprintf(&b, "- id=%s content=%q context=%q\n", p.ID, p.Content, p.Context)
	}
	b.WriteString("\nRecent conversation:\n")
	for _, m := range input.RecentMessages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

// parseEvaluation tolerates a markdown code fence wrapping the JSON
// object, matching how other LLM callers in this codebase clean up
// provider output before unmarshaling.
func parseEvaluation(text string) (rawEvaluation, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result rawEvaluation
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return rawEvaluation{}, fmt.Errorf("unmarshal evaluation JSON: %w", err)
	}
	return result, nil
}
