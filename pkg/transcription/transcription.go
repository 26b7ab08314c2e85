// Package transcription implements the voice-transcript cleanup
// pipeline: correcting domain terminology a speech recognizer mangled
// and converting spoken notation ("x squared") into display-ready
// LaTeX/backtick form, using a cheap dedicated LLM binding distinct
// from the tutor's.
package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/recallhq/engine/pkg/llm"
)

// Correction is one terminology fix the pipeline applied, recorded for
// optional UI display.
type Correction struct {
	Original  string
	Corrected string
}

// Result is the outcome of processing one raw transcript.
type Result struct {
	DisplayText string
	LLMText     string
	Corrections []Correction
	HasNotation bool
}

// notationPattern matches inline LaTeX ($...$) or backtick ("`...`")
// spans; HasNotation is true iff the processed text contains at least
// one.
var notationPattern = regexp.MustCompile("\\$[^$]+\\$|`[^`]+`")

// Pipeline runs the terminology + notation cleanup for one session.
type Pipeline struct {
	client                  llm.Client
	model                   string
	terminology             []string
	enableNotationDetection bool
	logger                  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New builds a Pipeline bound to a dedicated cheap-model client, with
// the terminology list and notation toggle computed once at session
// start.
func New(client llm.Client, model string, terminology []string, enableNotationDetection bool, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:                  client,
		model:                   model,
		terminology:             terminology,
		enableNotationDetection: enableNotationDetection,
		logger:                  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type rawCleanup struct {
	Text        string       `json:"text"`
	Corrections []Correction `json:"corrections"`
}

// Process cleans one raw transcript. skipTerminologyCorrection is true
// for typed (non-voice) input, where terminology garbling cannot occur.
func (p *Pipeline) Process(ctx context.Context, rawText string, skipTerminologyCorrection bool) Result {
	if rawText == "" {
		return Result{}
	}

	if skipTerminologyCorrection && !p.enableNotationDetection {
		return Result{DisplayText: rawText, LLMText: rawText, HasNotation: hasNotation(rawText)}
	}

	if skipTerminologyCorrection {
		return p.runPrompt(ctx, rawText, notationOnlyPrompt(rawText))
	}

	return p.runPrompt(ctx, rawText, combinedPrompt(rawText, p.terminology))
}

func (p *Pipeline) runPrompt(ctx context.Context, rawText string, prompt string) Result {
	temperature := float32(0.2)
	messages := []llm.ConversationMessage{
		{Role: llm.RoleSystem, Content: cleanupSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}
	resp, err := p.client.Complete(ctx, llm.CompleteInput{Model: p.model, Messages: messages, Temperature: &temperature})
	if err != nil {
		p.logger.Warn("transcription cleanup LLM call failed", "error", err)
		return Result{DisplayText: rawText, LLMText: rawText, HasNotation: hasNotation(rawText)}
	}

	var raw rawCleanup
	if err := parseCleanup(resp.Content, &raw); err != nil {
		p.logger.Warn("transcription cleanup response did not parse", "error", err)
		return Result{DisplayText: rawText, LLMText: rawText, HasNotation: hasNotation(rawText)}
	}

	text := raw.Text
	if text == "" {
		text = rawText
	}
	return Result{
		DisplayText: text,
		LLMText:     text,
		Corrections: raw.Corrections,
		HasNotation: hasNotation(text),
	}
}

func hasNotation(text string) bool {
	return notationPattern.MatchString(text)
}

const cleanupSystemPrompt = `You clean up voice-transcribed study answers. Respond with ONLY a JSON
object, no markdown:
{"text": "<cleaned text>", "corrections": [{"original": "<as heard>", "corrected": "<fixed>"}]}
Preserve the student's meaning exactly; only fix transcription errors
and notation, never rephrase or add content.`

func notationOnlyPrompt(rawText string) string {
	return fmt.Sprintf(
		"Convert any spoken mathematical or code notation in this text into "+
			"LaTeX ($...$) or backtick (`...`) form, leaving everything else "+
			"unchanged:\n\n%s", rawText)
}

func combinedPrompt(rawText string, terminology []string) string {
	return fmt.Sprintf(
		"This text was voice-transcribed and may contain terminology errors. "+
			"Known domain terms for this material: %s.\n\nCorrect any "+
			"terminology the transcriber mangled, and convert any spoken "+
			"mathematical or code notation into LaTeX ($...$) or backtick "+
			"(`...`) form:\n\n%s", strings.Join(terminology, ", "), rawText)
}

func parseCleanup(text string, out *rawCleanup) error {
	return json.Unmarshal([]byte(stripFence(text)), out)
}
