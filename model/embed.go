package model

import (
	"context"
	"fmt"
	"log"

	"ragagent/config"
)

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// NewEmbedder builds the embedder selected by EMBEDDING_PROVIDER.
func NewEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		log.Printf("[EMBEDDER] Uses local Ollama for embeddings (%s)", cfg.EmbeddingModel)
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel, cfg.EmbeddingDim), nil
	case config.ProviderGemini:
		log.Printf("[EMBEDDER] Uses Gemini for embeddings (%s)", cfg.EmbeddingModel)
		return NewGeminiEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}
