package llm

import (
	"context"
	"fmt"
	"log/slog"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens int64 = 2048

// AnthropicClient implements Client by talking to the Anthropic API
// directly, for deployments that skip the gRPC LLM side-car.
type AnthropicClient struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropicClient builds a direct-provider Client.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	return &AnthropicClient{
		sdk:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: anthropicDefaultMaxTokens,
		logger:    slog.Default().With("component", "llm.anthropic_client"),
	}
}

func (c *AnthropicClient) Close() error { return nil }

func adaptMessages(messages []ConversationMessage) (system string, converted []anthropic.MessageParam) {
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, converted
}

// Complete sends the conversation and blocks for the full response.
func (c *AnthropicClient) Complete(ctx context.Context, input CompleteInput) (CompleteOutput, error) {
	system, messages := adaptMessages(input.Messages)
	model := input.Model
	if model == "" {
		model = c.model
	}
	maxTokens := c.maxTokens
	if input.MaxTokens != nil {
		maxTokens = int64(*input.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return CompleteOutput{}, fmt.Errorf("anthropic complete: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if tb := block.AsAny(); tb != nil {
			if t, ok := tb.(anthropic.TextBlock); ok {
				text += t.Text
			}
		}
	}

	return CompleteOutput{
		Content:      text,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// Generate streams a tutor turn, translating Anthropic SSE events into
// this package's Chunk sum type.
func (c *AnthropicClient) Generate(ctx context.Context, input GenerateInput) (<-chan Chunk, error) {
	system, messages := adaptMessages(input.Messages)
	model := input.Model
	if model == "" {
		model = c.model
	}
	maxTokens := c.maxTokens
	if input.MaxTokens != nil {
		maxTokens = int64(*input.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	stream := c.sdk.Messages.NewStreaming(ctx, params)

	chunks := make(chan Chunk, 64)
	go func() {
		defer close(chunks)
		defer func() { _ = stream.Close() }()

		var acc anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				c.logger.Debug("accumulate error", "error", err)
			}

			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
					select {
					case chunks <- &TextChunk{Content: delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				select {
				case chunks <- &UsageChunk{
					InputTokens:  int(acc.Usage.InputTokens),
					OutputTokens: int(ev.Usage.OutputTokens),
					TotalTokens:  int(acc.Usage.InputTokens) + int(ev.Usage.OutputTokens),
				}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case chunks <- &ErrorChunk{Message: err.Error(), Retryable: false}:
			case <-ctx.Done():
			}
		}
	}()

	return chunks, nil
}
