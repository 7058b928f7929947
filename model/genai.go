package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"ragagent/types"
)

// GeminiEmbedder generates embeddings using Google's Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GenAI API key is required", types.ErrConfiguration)
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
	}, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// Embed embeds a search query.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds corpus passages in one request.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	cfg := &genai.EmbedContentConfig{TaskType: task}
	if e.dimension > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.dimension))
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("GenAI returned %d embeddings for %d inputs", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = normalize32(emb.Values)
	}
	return out, nil
}

// Truncated gemini-embedding-001 vectors are not unit length.
func normalize32(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

// GeminiLLM is the Gemini chat model with function calling.
type GeminiLLM struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewGeminiLLM(ctx context.Context, apiKey, model string) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GenAI API key is required", types.ErrConfiguration)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiLLM{
		client: client,
		model:  model,
		logger: slog.Default(),
	}, nil
}

func (g *GeminiLLM) Decide(ctx context.Context, system string, history []types.Message, tools []ToolSpec) (types.Message, error) {
	cfg := g.config(system)
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(tools)}}
	}
	logPromptSize(ctx, g.logger, system, history)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(history), cfg)
	if err != nil {
		return types.Message{}, upstream("generate", err)
	}

	msg := types.NewMessage(types.RoleAssistant, resp.Text())
	for _, fc := range resp.FunctionCalls() {
		id := fc.ID
		if id == "" {
			id = uuid.NewString()
		}
		msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{ID: id, Name: fc.Name, Args: fc.Args})
	}
	return msg, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, system string, history []types.Message) (string, error) {
	logPromptSize(ctx, g.logger, system, history)
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toContents(history), g.config(system))
	if err != nil {
		return "", upstream("generate", err)
	}
	return resp.Text(), nil
}

func (g *GeminiLLM) Stream(ctx context.Context, system string, history []types.Message, onToken func(string) error) (string, error) {
	logPromptSize(ctx, g.logger, system, history)

	var sb strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, toContents(history), g.config(system)) {
		if err != nil {
			return sb.String(), upstream("stream", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		sb.WriteString(text)
		if err := onToken(text); err != nil {
			return sb.String(), err
		}
	}
	return sb.String(), nil
}

func (g *GeminiLLM) config(system string) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
	}
}

func toFunctionDeclarations(tools []ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]*genai.Schema, len(t.Params))
		for name, desc := range t.Params {
			props[name] = &genai.Schema{Type: genai.TypeString, Description: desc}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   t.Required,
			},
		})
	}
	return decls
}

// toContents maps history to Gemini turns. Consecutive tool results become one user turn
// so the response count matches the preceding function calls.
func toContents(history []types.Message) []*genai.Content {
	var contents []*genai.Content
	var pending []*genai.Part

	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, genai.NewContentFromParts(pending, genai.RoleUser))
			pending = nil
		}
	}

	for _, m := range history {
		switch m.Role {
		case types.RoleTool:
			pending = append(pending, genai.NewPartFromFunctionResponse(m.ToolName, map[string]any{"result": m.Content}))
			continue
		case types.RoleAssistant:
			flush()
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, tc.Args))
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		default:
			flush()
			if m.Content != "" {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
			}
		}
	}
	flush()
	return contents
}
