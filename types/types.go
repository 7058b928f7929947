package types

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Origin string

const (
	OriginDocs Origin = "docs"
	OriginWeb  Origin = "web"
)

// Document is a source file of the corpus. Immutable once ingested.
type Document struct {
	ID        string
	Title     string
	URL       string
	Source    string // corpus entry name
	Path      string
	Content   string
	CreatedAt time.Time
}

// ParentChunk is the large-context span returned to the model.
type ParentChunk struct {
	ID        string
	DocID     string
	Index     int
	Title     string
	URL       string
	Section   string
	Content   string
	Embedding []float32
}

// ChildChunk is the small span that similarity search runs against.
// ParentID is a lookup key into the parent collection of the same build.
type ChildChunk struct {
	ID        string
	ParentID  string
	Index     int
	Section   string
	Content   string
	Embedding []float32
}

// ChildHit is one similarity-search result over the child collection.
type ChildHit struct {
	Child ChildChunk
	Score float64
}

// EvidenceRecord is the normalized result of any tool call.
type EvidenceRecord struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Title  string  `json:"title,omitempty"`
	Score  float64 `json:"score"`
	Origin Origin  `json:"origin"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one turn record of a conversation thread.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	// Guidance marks an evaluator request for more research.
	Guidance bool `json:"guidance,omitempty"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// Decision is the tri-state research flag of AgentState.
type Decision int

const (
	DecisionUnset Decision = iota
	DecisionContinue
	DecisionSufficient
)

func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "continue"
	case DecisionSufficient:
		return "sufficient"
	default:
		return "unset"
	}
}

const DefaultMaxIterations = 3

// AgentState is the per-thread conversation state.
type AgentState struct {
	Messages               []Message `json:"messages"`
	IterationCount         int       `json:"iteration_count"`
	MaxIterations          int       `json:"max_iterations"`
	ShouldContinueResearch Decision  `json:"should_continue_research"`
	PreviousDocIDs         []string  `json:"previous_doc_ids"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func NewAgentState(maxIterations int) *AgentState {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &AgentState{MaxIterations: maxIterations}
}

// Clone returns a deep copy so a turn can work on its own state until it completes.
func (s *AgentState) Clone() *AgentState {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		m.ToolCalls = slices.Clone(m.ToolCalls)
		c.Messages[i] = m
	}
	c.PreviousDocIDs = slices.Clone(s.PreviousDocIDs)
	return &c
}

// Merge appends new messages to history in order, skipping any whose ID already exists.
func Merge(history []Message, newMessages ...Message) []Message {
	seen := make(map[string]struct{}, len(history)+len(newMessages))
	for _, m := range history {
		seen[m.ID] = struct{}{}
	}
	for _, m := range newMessages {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		history = append(history, m)
	}
	return history
}

// IndexStats describes the persisted collections.
type IndexStats struct {
	Parents  int `json:"parent_count"`
	Children int `json:"child_count"`
}

func (s IndexStats) Exists() bool {
	return s.Children > 0
}
