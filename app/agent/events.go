package agent

import (
	"context"
	"unicode/utf8"

	"ragagent/types"
)

type EventType string

const (
	EventReasoning        EventType = "reasoning"
	EventFinalAnswerStart EventType = "final_answer_start"
	EventToken            EventType = "token"
	EventCitation         EventType = "citation"
	EventDone             EventType = "done"
	EventError            EventType = "error"
)

// Reasoning step labels.
const (
	StepStart              = "start"
	StepAgent              = "agent"
	StepToolCall           = "tool_call"
	StepToolResult         = "tool_result"
	StepToolError          = "tool_error"
	StepEvaluation         = "evaluation_decision"
	StepRepetitionDetected = "repetition_detected"
	StepMaxIterations      = "max_iterations"
	StepRespond            = "respond"
)

// Event is one item of a turn's stream. Data is one of the payload types below.
type Event struct {
	Type EventType
	Data any
}

type Reasoning struct {
	Step        string `json:"step"`
	Message     string `json:"message"`
	Tool        string `json:"tool,omitempty"`
	Query       string `json:"query,omitempty"`
	Decision    string `json:"decision,omitempty"`
	Iteration   int    `json:"iteration,omitempty"`
	ResultCount *int   `json:"result_count,omitempty"`
}

type FinalAnswerStart struct{}

type Token struct {
	Content string `json:"content"`
}

type Citation struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

type Done struct {
	ThreadID   string `json:"thread_id"`
	Mode       string `json:"mode"`
	Iterations int    `json:"iterations"`
}

type ErrorData struct {
	Error string `json:"error"`
}

// Emitter is the producer side of a turn's stream. Every send blocks until the consumer
// takes the event or the turn is cancelled, in which case types.ErrAborted is returned.
type Emitter struct {
	ctx context.Context
	out chan<- Event
}

func NewEmitter(ctx context.Context, out chan<- Event) *Emitter {
	return &Emitter{ctx: ctx, out: out}
}

func (e *Emitter) send(ev Event) error {
	if e.ctx.Err() != nil {
		return types.ErrAborted
	}
	select {
	case e.out <- ev:
		return nil
	case <-e.ctx.Done():
		return types.ErrAborted
	}
}

func (e *Emitter) Reasoning(r Reasoning) error {
	return e.send(Event{Type: EventReasoning, Data: r})
}

func (e *Emitter) FinalAnswerStart() error {
	return e.send(Event{Type: EventFinalAnswerStart, Data: FinalAnswerStart{}})
}

func (e *Emitter) Token(content string) error {
	return e.send(Event{Type: EventToken, Data: Token{Content: content}})
}

func (e *Emitter) Citation(c Citation) error {
	return e.send(Event{Type: EventCitation, Data: c})
}

func (e *Emitter) Done(d Done) error {
	return e.send(Event{Type: EventDone, Data: d})
}

// Error is best effort: a consumer that is already gone does not get it.
func (e *Emitter) Error(msg string) {
	_ = e.send(Event{Type: EventError, Data: ErrorData{Error: msg}})
}

const snippetLen = 200

// Citations turns evidence into one citation per distinct source URL, in first-seen order.
func Citations(evidence []types.EvidenceRecord) []Citation {
	seen := map[string]bool{}
	var out []Citation
	for _, ev := range evidence {
		if ev.Source == "" || seen[ev.Source] {
			continue
		}
		seen[ev.Source] = true

		title := ev.Title
		if title == "" {
			title = "Documentation"
		}
		out = append(out, Citation{
			SourceURL: ev.Source,
			Title:     title,
			Snippet:   truncate(ev.Text, snippetLen),
		})
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
