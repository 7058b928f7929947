package model

import (
	"context"
	"fmt"

	"ragagent/config"
	"ragagent/types"
)

// ToolSpec declares a callable tool to the model. All parameters are strings.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]string
	Required    []string
}

// LLM is the language-model collaborator of the research controller.
type LLM interface {
	// Decide runs a tool-enabled completion; the reply may carry tool calls.
	Decide(ctx context.Context, system string, history []types.Message, tools []ToolSpec) (types.Message, error)
	// Complete runs a plain completion without tools.
	Complete(ctx context.Context, system string, history []types.Message) (string, error)
	// Stream runs a plain completion and passes each text fragment to onToken.
	Stream(ctx context.Context, system string, history []types.Message, onToken func(string) error) (string, error)
}

// NewLLM builds the model client selected by LLM_PROVIDER.
func NewLLM(ctx context.Context, cfg *config.Config) (LLM, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return NewGeminiLLM(ctx, cfg.GoogleAPIKey, cfg.LLMModel)
	case config.ProviderOllama:
		return NewOllamaLLM(cfg.OllamaURL, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", types.ErrUpstreamModel, op, err)
}
