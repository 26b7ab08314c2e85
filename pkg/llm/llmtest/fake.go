// Package llmtest provides a scripted llm.Client fake for tests across
// the engine: session, evaluator, rabbithole, and transcription tests
// all script LLM responses instead of hitting a real provider.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/recallhq/engine/pkg/llm"
)

// ScriptEntry is one scripted response. Exactly one of Chunks, Text, or
// Error should be set for a streaming call; CompleteText/CompleteErr
// drive Complete.
type ScriptEntry struct {
	Chunks []llm.Chunk
	Text   string
	Error  error

	CompleteText string
	CompleteErr  error
}

// Client implements llm.Client with a sequential script consumed in
// call order, recording every input it received for assertions.
type Client struct {
	mu                sync.Mutex
	entries           []ScriptEntry
	index             int
	completeIndex     int
	CapturedInputs    []llm.GenerateInput
	CapturedCompletes []llm.CompleteInput
}

// New builds an empty Client; add entries with AddSequential.
func New() *Client {
	return &Client{}
}

// AddSequential appends an entry consumed by the next Generate/Complete
// call, in order.
func (c *Client) AddSequential(entry ScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *Client) nextEntry() (ScriptEntry, error) {
	if c.index >= len(c.entries) {
		return ScriptEntry{}, fmt.Errorf("llmtest: no more scripted entries (call %d)", c.index+1)
	}
	e := c.entries[c.index]
	c.index++
	return e, nil
}

// Generate implements llm.Client.
func (c *Client) Generate(ctx context.Context, input llm.GenerateInput) (<-chan llm.Chunk, error) {
	c.mu.Lock()
	c.CapturedInputs = append(c.CapturedInputs, input)
	entry, err := c.nextEntry()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if entry.Error != nil {
		return nil, entry.Error
	}

	chunks := entry.Chunks
	if len(chunks) == 0 && entry.Text != "" {
		chunks = []llm.Chunk{
			&llm.TextChunk{Content: entry.Text},
			&llm.UsageChunk{InputTokens: 10, OutputTokens: len(entry.Text) / 4, TotalTokens: 10 + len(entry.Text)/4},
		}
	}

	ch := make(chan llm.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, input llm.CompleteInput) (llm.CompleteOutput, error) {
	c.mu.Lock()
	c.CapturedCompletes = append(c.CapturedCompletes, input)
	if c.completeIndex >= len(c.entries) {
		c.mu.Unlock()
		return llm.CompleteOutput{}, fmt.Errorf("llmtest: no more scripted entries (complete call %d)", c.completeIndex+1)
	}
	entry := c.entries[c.completeIndex]
	c.completeIndex++
	c.mu.Unlock()

	if entry.CompleteErr != nil {
		return llm.CompleteOutput{}, entry.CompleteErr
	}
	return llm.CompleteOutput{Content: entry.CompleteText}, nil
}

// Close implements llm.Client.
func (c *Client) Close() error { return nil }
