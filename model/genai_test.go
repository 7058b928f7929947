package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"ragagent/types"
)

func TestToContents_GroupsToolResults(t *testing.T) {
	history := []types.Message{
		types.NewMessage(types.RoleUser, "Compare X and Y"),
		{ID: "a1", Role: types.RoleAssistant, ToolCalls: []types.ToolCall{
			{ID: "c1", Name: "search_docs", Args: map[string]any{"query": "X"}},
			{ID: "c2", Name: "web_search", Args: map[string]any{"query": "Y"}},
		}},
		{ID: "t1", Role: types.RoleTool, ToolName: "search_docs", ToolCallID: "c1", Content: "[x]"},
		{ID: "t2", Role: types.RoleTool, ToolName: "web_search", ToolCallID: "c2", Content: "[y]"},
		{ID: "g1", Role: types.RoleUser, Content: "NEED MORE RESEARCH", Guidance: true},
	}

	contents := toContents(history)
	require.Len(t, contents, 4)

	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "search_docs", contents[1].Parts[0].FunctionCall.Name)

	require.Len(t, contents[2].Parts, 2)
	assert.Equal(t, "search_docs", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "[y]", contents[2].Parts[1].FunctionResponse.Response["result"])

	assert.Equal(t, "NEED MORE RESEARCH", contents[3].Parts[0].Text)
}

func TestToFunctionDeclarations(t *testing.T) {
	decls := toFunctionDeclarations([]ToolSpec{{
		Name:        "search_docs",
		Description: "Search the documentation index",
		Params:      map[string]string{"query": "search query"},
		Required:    []string{"query"},
	}})
	require.Len(t, decls, 1)
	assert.Equal(t, genai.TypeObject, decls[0].Parameters.Type)
	assert.Equal(t, genai.TypeString, decls[0].Parameters.Properties["query"].Type)
	assert.Equal(t, []string{"query"}, decls[0].Parameters.Required)
}

func TestNormalize32(t *testing.T) {
	v := normalize32([]float32{0, 3, 4})
	assert.InDelta(t, 0.6, v[1], 1e-6)
	assert.InDelta(t, 0.8, v[2], 1e-6)
	assert.Equal(t, []float32{0, 0}, normalize32([]float32{0, 0}))
}
