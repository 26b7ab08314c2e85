package rabbithole

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/engine/pkg/llm"
	"github.com/recallhq/engine/pkg/llm/llmtest"
)

func TestAgent_OpenRecordsUserThenAssistantTurn(t *testing.T) {
	fake := llmtest.New()
	fake.AddSequential(llmtest.ScriptEntry{CompleteText: "Great question about black holes!"})

	agent := NewAgent(fake, "claude-haiku", Persona{Topic: "black holes", RecallSetName: "Astro 101", RecallSetDescription: "intro astrophysics"})
	reply, err := agent.Open(context.Background(), "wait, how do black holes form?")

	require.NoError(t, err)
	assert.Equal(t, "Great question about black holes!", reply)

	history := agent.History()
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "wait, how do black holes form?", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)
}

func TestAgent_RespondAppendsToHistory(t *testing.T) {
	fake := llmtest.New()
	fake.AddSequential(llmtest.ScriptEntry{CompleteText: "opening reply"})
	fake.AddSequential(llmtest.ScriptEntry{CompleteText: "follow-up reply"})

	agent := NewAgent(fake, "claude-haiku", Persona{Topic: "x"})
	_, err := agent.Open(context.Background(), "trigger")
	require.NoError(t, err)

	reply, err := agent.Respond(context.Background(), "tell me more")
	require.NoError(t, err)
	assert.Equal(t, "follow-up reply", reply)
	assert.Len(t, agent.History(), 4)
}

func TestAgent_HistoryIsDefensiveCopy(t *testing.T) {
	fake := llmtest.New()
	fake.AddSequential(llmtest.ScriptEntry{CompleteText: "reply"})

	agent := NewAgent(fake, "claude-haiku", Persona{Topic: "x"})
	_, err := agent.Open(context.Background(), "trigger")
	require.NoError(t, err)

	history := agent.History()
	history[0].Content = "mutated"

	assert.Equal(t, "trigger", agent.History()[0].Content)
}

func TestAgent_SystemPromptSentOnEveryCall(t *testing.T) {
	fake := llmtest.New()
	fake.AddSequential(llmtest.ScriptEntry{CompleteText: "a"})
	fake.AddSequential(llmtest.ScriptEntry{CompleteText: "b"})

	agent := NewAgent(fake, "claude-haiku", Persona{Topic: "volcanoes", RecallSetName: "Geo", RecallSetDescription: "rocks"})
	_, err := agent.Open(context.Background(), "trigger")
	require.NoError(t, err)
	_, err = agent.Respond(context.Background(), "more")
	require.NoError(t, err)

	require.Len(t, fake.CapturedCompletes, 2)
	for _, call := range fake.CapturedCompletes {
		require.NotEmpty(t, call.Messages)
		assert.Equal(t, llm.RoleSystem, call.Messages[0].Role)
		assert.Contains(t, call.Messages[0].Content, "volcanoes")
	}
}

func TestStack_PushPopDepth(t *testing.T) {
	s := NewStack()
	assert.Equal(t, 0, s.Depth())
	assert.Nil(t, s.Active())

	outer := NewAgent(llmtest.New(), "m", Persona{Topic: "outer"})
	s.Push(outer)
	assert.Equal(t, 1, s.Depth())
	assert.Same(t, outer, s.Active())

	inner := NewAgent(llmtest.New(), "m", Persona{Topic: "inner"})
	s.Push(inner)
	assert.Equal(t, 2, s.Depth())
	assert.Same(t, inner, s.Active())

	popped := s.Pop()
	assert.Same(t, inner, popped)
	assert.Equal(t, 1, s.Depth())
	assert.Same(t, outer, s.Active())

	s.Pop()
	assert.Equal(t, 0, s.Depth())
	assert.Nil(t, s.Pop())
}
