// Package agent runs the research loop for one chat turn.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"ragagent/config"
	"ragagent/model"
	"ragagent/store"
	"ragagent/types"
)

// Tools is the gateway the controller calls tools through.
type Tools interface {
	Specs() []model.ToolSpec
	Invoke(ctx context.Context, name string, args map[string]any) ([]types.EvidenceRecord, error)
}

type State int

const (
	StateAgent State = iota
	StateTools
	StateEvaluateRespond
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAgent:
		return "AGENT"
	case StateTools:
		return "TOOLS"
	case StateEvaluateRespond:
		return "EVALUATE_RESPOND"
	case StateDone:
		return "DONE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lists every legal move. DONE has none.
var transitions = map[State][]State{
	StateAgent:           {StateTools, StateEvaluateRespond},
	StateTools:           {StateEvaluateRespond},
	StateEvaluateRespond: {StateAgent, StateDone},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

type Controller struct {
	llm           model.LLM
	tools         Tools
	sessions      store.SessionStorer
	mode          config.Mode
	maxIterations int
	logger        *slog.Logger
}

func NewController(llm model.LLM, tools Tools, sessions store.SessionStorer, mode config.Mode, maxIterations int) *Controller {
	if maxIterations <= 0 {
		maxIterations = types.DefaultMaxIterations
	}
	return &Controller{
		llm:           llm,
		tools:         tools,
		sessions:      sessions,
		mode:          mode,
		maxIterations: maxIterations,
		logger:        slog.Default(),
	}
}

// Start runs one turn of threadID in a new goroutine. The returned channel carries the
// turn's events and is closed after the terminal done or error event. Cancelling ctx
// aborts the turn; an aborted or failed turn persists nothing.
func (c *Controller) Start(ctx context.Context, threadID, question string) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		emit := NewEmitter(ctx, out)
		if err := c.Run(ctx, threadID, question, emit); err != nil {
			if errors.Is(err, types.ErrAborted) || ctx.Err() != nil {
				c.logger.Info("turn aborted by client", "thread", threadID)
				return
			}
			c.logger.Error("turn failed", "thread", threadID, "err", err)
			emit.Error(userMessage(err))
		}
	}()
	return out
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrUpstreamModel):
		return "The language model request failed. Please try again."
	default:
		return "Internal error: " + err.Error()
	}
}

// turn is the working state of one Run.
type turn struct {
	threadID    string
	state       *types.AgentState
	emit        *Emitter
	evidence    []types.EvidenceRecord
	pending     []types.ToolCall
	agentVisits int
	limitHit    bool
}

// Run drives the state machine from AGENT to DONE and persists the thread at DONE.
func (c *Controller) Run(ctx context.Context, threadID, question string, emit *Emitter) error {
	state, err := c.sessions.Load(ctx, threadID)
	if errors.Is(err, types.ErrNotFound) {
		state = types.NewAgentState(c.maxIterations)
	} else if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	state.MaxIterations = c.maxIterations
	state.IterationCount = 0
	state.ShouldContinueResearch = types.DecisionUnset
	state.Messages = types.Merge(state.Messages, types.NewMessage(types.RoleUser, question))

	t := &turn{threadID: threadID, state: state, emit: emit}
	c.logger.Info("turn started", "thread", threadID, "mode", c.mode, "history", len(state.Messages))

	if err := emit.Reasoning(Reasoning{Step: StepStart, Message: "Starting research..."}); err != nil {
		return err
	}

	current := StateAgent
	for current != StateDone {
		if err := ctx.Err(); err != nil {
			return types.ErrAborted
		}

		var next State
		switch current {
		case StateAgent:
			next, err = c.agentStep(ctx, t)
		case StateTools:
			next, err = c.toolsStep(ctx, t)
		case StateEvaluateRespond:
			next, err = c.evaluateRespondStep(ctx, t)
		}
		if err != nil {
			if ctx.Err() != nil {
				return types.ErrAborted
			}
			return err
		}
		if !canTransition(current, next) {
			return fmt.Errorf("illegal transition %s -> %s", current, next)
		}
		c.logger.Debug("transition", "thread", threadID, "from", current, "to", next, "iteration", state.IterationCount)
		current = next
	}

	return c.finish(ctx, t)
}

func (c *Controller) agentStep(ctx context.Context, t *turn) (State, error) {
	t.agentVisits++
	if err := t.emit.Reasoning(Reasoning{
		Step:      StepAgent,
		Iteration: t.agentVisits,
		Message:   fmt.Sprintf("Iteration %d: analyzing and deciding next action...", t.agentVisits),
	}); err != nil {
		return 0, err
	}

	msg, err := c.llm.Decide(ctx, SystemPrompt(c.mode), t.state.Messages, c.tools.Specs())
	if err != nil {
		return 0, err
	}
	t.state.Messages = types.Merge(t.state.Messages, msg)

	if len(msg.ToolCalls) == 0 {
		return StateEvaluateRespond, nil
	}
	t.pending = msg.ToolCalls
	return StateTools, nil
}

type callResult struct {
	records []types.EvidenceRecord
	err     error
}

func (c *Controller) toolsStep(ctx context.Context, t *turn) (State, error) {
	calls := t.pending
	t.pending = nil

	for _, call := range calls {
		query, _ := call.Args["query"].(string)
		if err := t.emit.Reasoning(Reasoning{
			Step:    StepToolCall,
			Tool:    call.Name,
			Query:   query,
			Message: fmt.Sprintf("Calling %s: %q", call.Name, query),
		}); err != nil {
			return 0, err
		}
	}

	results := make([]callResult, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			records, err := c.tools.Invoke(ctx, call.Name, call.Args)
			results[i] = callResult{records: records, err: err}
			return nil
		})
	}
	g.Wait()
	if ctx.Err() != nil {
		return 0, types.ErrAborted
	}

	var current []string
	for i, call := range calls {
		res := results[i]
		content := toolContent(res)

		if res.err != nil {
			c.logger.Warn("tool call failed", "thread", t.threadID, "tool", call.Name, "err", res.err)
			if err := t.emit.Reasoning(Reasoning{
				Step:    StepToolError,
				Tool:    call.Name,
				Message: fmt.Sprintf("%s failed, continuing without its results", call.Name),
			}); err != nil {
				return 0, err
			}
		} else {
			n := len(res.records)
			if err := t.emit.Reasoning(Reasoning{
				Step:        StepToolResult,
				Tool:        call.Name,
				ResultCount: &n,
				Message:     fmt.Sprintf("%s returned %d result(s)", call.Name, n),
			}); err != nil {
				return 0, err
			}
		}

		t.state.Messages = types.Merge(t.state.Messages, types.Message{
			ID:         fmt.Sprintf("%s-result", call.ID),
			Role:       types.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			ToolName:   call.Name,
		})
		for _, r := range res.records {
			t.evidence = append(t.evidence, r)
			current = append(current, r.ID)
		}
	}

	current = uniqueSorted(current)
	// only rounds of the same turn are compared
	repeated := t.state.IterationCount > 0 && len(current) > 0 && slices.Equal(current, t.state.PreviousDocIDs)
	t.state.PreviousDocIDs = current
	t.state.IterationCount++

	if repeated {
		t.limitHit = true
		c.logger.Info("repeated evidence, stopping research", "thread", t.threadID, "iteration", t.state.IterationCount)
		if err := t.emit.Reasoning(Reasoning{
			Step:    StepRepetitionDetected,
			Message: "Search returned the same results as the previous round, stopping research",
		}); err != nil {
			return 0, err
		}
	}
	if t.state.IterationCount >= t.state.MaxIterations {
		t.limitHit = true
		if err := t.emit.Reasoning(Reasoning{
			Step:      StepMaxIterations,
			Iteration: t.state.IterationCount,
			Message:   fmt.Sprintf("Reached the limit of %d research iterations", t.state.MaxIterations),
		}); err != nil {
			return 0, err
		}
	}
	return StateEvaluateRespond, nil
}

func (c *Controller) evaluateRespondStep(ctx context.Context, t *turn) (State, error) {
	forced := t.limitHit || t.agentVisits >= t.state.MaxIterations

	if !forced {
		prompt := types.NewMessage(types.RoleUser, AssessmentPrompt(t.state.IterationCount, t.state.MaxIterations))
		assessment, err := c.llm.Complete(ctx, SynthesisSystem, append(slices.Clone(t.state.Messages), prompt))
		if err != nil {
			return 0, err
		}

		if NeedsMoreResearch(assessment) {
			t.state.ShouldContinueResearch = types.DecisionContinue
			if err := t.emit.Reasoning(Reasoning{
				Step:     StepEvaluation,
				Decision: types.DecisionContinue.String(),
				Message:  "Need more information, continuing research...",
			}); err != nil {
				return 0, err
			}
			guidance := types.NewMessage(types.RoleUser, assessment)
			guidance.Guidance = true
			t.state.Messages = types.Merge(t.state.Messages, guidance)
			return StateAgent, nil
		}
	}

	t.state.ShouldContinueResearch = types.DecisionSufficient
	msg := "Research is sufficient, generating answer..."
	if forced {
		msg = "Research limit reached, answering with the evidence gathered"
	}
	if err := t.emit.Reasoning(Reasoning{
		Step:     StepEvaluation,
		Decision: types.DecisionSufficient.String(),
		Message:  msg,
	}); err != nil {
		return 0, err
	}
	if err := t.emit.Reasoning(Reasoning{Step: StepRespond, Message: "Research complete! Generating final answer..."}); err != nil {
		return 0, err
	}
	if err := t.emit.FinalAnswerStart(); err != nil {
		return 0, err
	}

	instruction := types.NewMessage(types.RoleUser, AnswerPrompt(forced))
	answer, err := c.llm.Stream(ctx, SynthesisSystem, append(slices.Clone(t.state.Messages), instruction), t.emit.Token)
	if err != nil {
		return 0, err
	}
	t.state.Messages = types.Merge(t.state.Messages, types.NewMessage(types.RoleAssistant, answer))
	return StateDone, nil
}

// finish emits citations, persists the thread and sends done.
func (c *Controller) finish(ctx context.Context, t *turn) error {
	for _, cit := range Citations(t.evidence) {
		if err := t.emit.Citation(cit); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return types.ErrAborted
	}
	t.state.UpdatedAt = time.Now().UTC()
	if err := c.sessions.Save(ctx, t.threadID, t.state); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	c.logger.Info("turn complete", "thread", t.threadID, "iterations", t.state.IterationCount, "evidence", len(t.evidence))
	return t.emit.Done(Done{
		ThreadID:   t.threadID,
		Mode:       string(c.mode),
		Iterations: t.state.IterationCount,
	})
}

func toolContent(res callResult) string {
	var v any = res.records
	if res.err != nil {
		v = map[string]string{"error": res.err.Error()}
	} else if len(res.records) == 0 {
		v = map[string]string{"message": "No relevant results found. Try rephrasing the query."}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func uniqueSorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
