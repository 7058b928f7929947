package model

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"ragagent/types"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// CountTokens approximates the prompt size with the cl100k encoding used by gpt-3.5-turbo.
// Falls back to len/4 when the encoding cannot be loaded.
func CountTokens(text string) int {
	encOnce.Do(func() {
		enc, encErr = tiktoken.EncodingForModel("gpt-3.5-turbo")
	})
	if encErr != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// logPromptSize counts tokens only when debug logging is on; loading the encoding is not free.
func logPromptSize(ctx context.Context, logger *slog.Logger, system string, history []types.Message) {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	total := CountTokens(system)
	for _, m := range history {
		total += CountTokens(m.Content)
	}
	logger.DebugContext(ctx, "prompt size", "messages", len(history), "tokens", total)
}
