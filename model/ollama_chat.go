package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ragagent/types"
)

// OllamaLLM talks to Ollama's /api/chat endpoint.
type OllamaLLM struct {
	apiURL string
	model  string
	client *http.Client
	logger *slog.Logger
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Tools    []ollamaTool        `json:"tools,omitempty"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error,omitempty"`
}

func NewOllamaLLM(baseURL, model string) *OllamaLLM {
	return &OllamaLLM{
		apiURL: strings.TrimRight(baseURL, "/") + "/api/chat",
		model:  model,
		client: &http.Client{Timeout: 5 * time.Minute},
		logger: slog.Default(),
	}
}

func (o *OllamaLLM) Decide(ctx context.Context, system string, history []types.Message, tools []ToolSpec) (types.Message, error) {
	req := o.request(system, history, false)
	for _, t := range tools {
		req.Tools = append(req.Tools, toOllamaTool(t))
	}

	resp, err := o.post(ctx, req)
	if err != nil {
		return types.Message{}, err
	}
	defer resp.Body.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.Message{}, upstream("decode response", err)
	}
	if out.Error != "" {
		return types.Message{}, upstream("chat", fmt.Errorf("%s", out.Error))
	}

	msg := types.NewMessage(types.RoleAssistant, out.Message.Content)
	for _, tc := range out.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
			ID:   uuid.NewString(),
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		})
	}
	return msg, nil
}

func (o *OllamaLLM) Complete(ctx context.Context, system string, history []types.Message) (string, error) {
	return o.Stream(ctx, system, history, func(string) error { return nil })
}

func (o *OllamaLLM) Stream(ctx context.Context, system string, history []types.Message, onToken func(string) error) (string, error) {
	resp, err := o.post(ctx, o.request(system, history, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)

	var b strings.Builder
	for {
		var chunk ollamaChatResponse

		if err := decoder.Decode(&chunk); err == io.EOF {
			break
		} else if err != nil {
			if ctx.Err() != nil {
				return b.String(), ctx.Err()
			}
			return b.String(), upstream("decode stream", err)
		}
		if chunk.Error != "" {
			return b.String(), upstream("chat", fmt.Errorf("%s", chunk.Error))
		}

		if text := chunk.Message.Content; text != "" {
			b.WriteString(text)
			if err := onToken(text); err != nil {
				return b.String(), err
			}
		}

		if chunk.Done {
			break
		}
	}
	return b.String(), nil
}

func (o *OllamaLLM) request(system string, history []types.Message, stream bool) ollamaChatRequest {
	logPromptSize(context.Background(), o.logger, system, history)

	msgs := make([]ollamaChatMessage, 0, len(history)+1)
	msgs = append(msgs, ollamaChatMessage{Role: "system", Content: system})
	for _, m := range history {
		om := ollamaChatMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == types.RoleTool {
			om.ToolName = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			var call ollamaToolCall
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Args
			om.ToolCalls = append(om.ToolCalls, call)
		}
		msgs = append(msgs, om)
	}
	return ollamaChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   stream,
		Options:  map[string]any{"temperature": 0},
	}
}

func (o *OllamaLLM) post(ctx context.Context, req ollamaChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, upstream("request", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, upstream("chat", fmt.Errorf("status %d, body: %s", resp.StatusCode, string(b)))
	}
	return resp, nil
}

func toOllamaTool(t ToolSpec) ollamaTool {
	props := make(map[string]any, len(t.Params))
	for name, desc := range t.Params {
		props[name] = map[string]any{"type": "string", "description": desc}
	}
	return ollamaTool{
		Type: "function",
		Function: ollamaToolFunction{
			Name:        t.Name,
			Description: t.Description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   t.Required,
			},
		},
	}
}
