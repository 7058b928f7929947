package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_AppendsInOrder(t *testing.T) {
	a := NewMessage(RoleUser, "a")
	b := NewMessage(RoleAssistant, "b")
	c := NewMessage(RoleUser, "c")

	got := Merge([]Message{a}, b, c)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, contents(got))
}

func TestMerge_SkipsKnownIdentity(t *testing.T) {
	a := NewMessage(RoleUser, "a")
	b := NewMessage(RoleAssistant, "b")

	got := Merge([]Message{a, b}, a, b)
	assert.Equal(t, []string{"a", "b"}, contents(got))

	// duplicates inside the new batch collapse too
	c := NewMessage(RoleUser, "c")
	got = Merge(got, c, c)
	assert.Equal(t, []string{"a", "b", "c"}, contents(got))
}

func TestMerge_ReplacedContentKeepsOriginal(t *testing.T) {
	a := NewMessage(RoleUser, "original")
	edited := a
	edited.Content = "edited"

	got := Merge([]Message{a}, edited)
	require.Len(t, got, 1)
	assert.Equal(t, "original", got[0].Content)
}

func TestAgentState_CloneIsIndependent(t *testing.T) {
	s := NewAgentState(0)
	assert.Equal(t, DefaultMaxIterations, s.MaxIterations)
	s.Messages = []Message{{ID: "1", ToolCalls: []ToolCall{{ID: "t"}}}}
	s.PreviousDocIDs = []string{"p1"}

	c := s.Clone()
	c.Messages[0].ToolCalls[0].ID = "changed"
	c.Messages = append(c.Messages, Message{ID: "2"})
	c.PreviousDocIDs[0] = "p2"
	c.IterationCount = 2

	assert.Equal(t, "t", s.Messages[0].ToolCalls[0].ID)
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, []string{"p1"}, s.PreviousDocIDs)
	assert.Zero(t, s.IterationCount)
}

func TestChatParams_Validate(t *testing.T) {
	p := &ChatParams{}
	errs := Validate(p)
	assert.Contains(t, errs, "Question")

	id := "abc"
	p = &ChatParams{Question: "What is a StateGraph?", ThreadID: &id}
	assert.Empty(t, Validate(p))
}

func contents(ms []Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Content
	}
	return out
}
