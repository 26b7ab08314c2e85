package rabbithole

import (
	"context"
	"fmt"
	"strings"

	"github.com/recallhq/engine/pkg/llm"
)

// Message is one turn of a rabbithole's isolated conversation.
type Message struct {
	Role    string
	Content string
}

// Persona parameterizes the exploratory system prompt an Agent is bound
// to for its lifetime.
type Persona struct {
	Topic                string
	RecallSetName        string
	RecallSetDescription string
}

// Agent runs one tangent conversation, isolated from the parent
// session: its history is never merged into the main transcript.
type Agent struct {
	client  llm.Client
	model   string
	persona Persona
	history []Message
}

// NewAgent builds an Agent bound to a dedicated LLM client whose system
// prompt is fixed to an exploratory (not Socratic) persona for this
// topic. The binding does not change after construction.
func NewAgent(client llm.Client, model string, persona Persona) *Agent {
	return &Agent{client: client, model: model, persona: persona}
}

func (a *Agent) systemPrompt() string {
	return fmt.Sprintf(
		"You are a curious, exploratory conversational partner (not a tutor "+
			"or quizzer) helping a student who has wandered off-topic while "+
			"studying %q. The student's recall set is %q: %s. Follow their "+
			"curiosity about %q, answer questions directly and engagingly, and "+
			"do not attempt to quiz, evaluate, or redirect them back to "+
			"studying unless they ask to.",
		a.persona.Topic, a.persona.RecallSetName, a.persona.RecallSetDescription, a.persona.Topic,
	)
}

// Open synthesizes the rabbithole's opening turn. Most providers require
// the first message in a conversation to have role user, so the trigger
// text is recorded as a synthetic user turn followed by the model's
// reply, rather than starting from an empty assistant turn.
func (a *Agent) Open(ctx context.Context, trigger string) (string, error) {
	a.history = append(a.history, Message{Role: llm.RoleUser, Content: trigger})

	reply, err := a.call(ctx)
	if err != nil {
		return "", fmt.Errorf("open rabbithole: %w", err)
	}
	a.history = append(a.history, Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// Respond appends the student's turn and re-sends the full isolated
// conversation, returning the assistant's reply.
func (a *Agent) Respond(ctx context.Context, userText string) (string, error) {
	a.history = append(a.history, Message{Role: llm.RoleUser, Content: userText})

	reply, err := a.call(ctx)
	if err != nil {
		return "", fmt.Errorf("rabbithole respond: %w", err)
	}
	a.history = append(a.history, Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// History returns a defensive copy of the isolated conversation so far.
func (a *Agent) History() []Message {
	return append([]Message(nil), a.history...)
}

func (a *Agent) call(ctx context.Context) (string, error) {
	messages := make([]llm.ConversationMessage, 0, len(a.history)+1)
	messages = append(messages, llm.ConversationMessage{Role: llm.RoleSystem, Content: a.systemPrompt()})
	for _, m := range a.history {
		messages = append(messages, llm.ConversationMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := a.client.Complete(ctx, llm.CompleteInput{Model: a.model, Messages: messages})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
