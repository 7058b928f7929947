// Package tools exposes the retrieval tools the research agent may call.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"ragagent/config"
	"ragagent/model"
	"ragagent/types"
)

const (
	SearchDocs = "search_docs"
	WebSearch  = "web_search"
)

// Searcher is the contract shared by both tools: at most topK records with score >= minScore.
type Searcher interface {
	Search(ctx context.Context, query string, topK int, minScore float64) ([]types.EvidenceRecord, error)
}

type tool struct {
	spec     model.ToolSpec
	searcher Searcher
}

// Gateway dispatches tool calls by name. Offline it registers search_docs only;
// online it adds web_search.
type Gateway struct {
	tools    []tool
	topK     int
	minScore float64
	logger   *slog.Logger
}

func NewGateway(cfg *config.Config, docs Searcher, web Searcher) (*Gateway, error) {
	g := &Gateway{
		topK:     cfg.TopK,
		minScore: cfg.MinScore,
		logger:   slog.Default(),
	}
	g.tools = append(g.tools, tool{
		spec: model.ToolSpec{
			Name: SearchDocs,
			Description: "Search the local documentation index. Best for core concepts, API references " +
				"and foundational knowledge.",
			Params:   map[string]string{"query": "The search query, e.g. \"how to add memory to an agent\""},
			Required: []string{"query"},
		},
		searcher: docs,
	})

	if cfg.IsOnline() {
		if web == nil {
			return nil, fmt.Errorf("%w: online mode requires a web search provider", types.ErrConfiguration)
		}
		g.tools = append(g.tools, tool{
			spec: model.ToolSpec{
				Name: WebSearch,
				Description: "Search the web. Best for latest updates, real-world examples, tutorials " +
					"and troubleshooting.",
				Params:   map[string]string{"query": "The search query"},
				Required: []string{"query"},
			},
			searcher: web,
		})
	}
	return g, nil
}

func (g *Gateway) Specs() []model.ToolSpec {
	out := make([]model.ToolSpec, len(g.tools))
	for i, t := range g.tools {
		out[i] = t.spec
	}
	return out
}

func (g *Gateway) Names() []string {
	out := make([]string, len(g.tools))
	for i, t := range g.tools {
		out[i] = t.spec.Name
	}
	return out
}

// Invoke runs one tool call. Unknown tools, malformed arguments and provider failures
// are returned as types.ErrToolInvocation; cancellation is returned unchanged.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) ([]types.EvidenceRecord, error) {
	var t *tool
	for i := range g.tools {
		if g.tools[i].spec.Name == name {
			t = &g.tools[i]
			break
		}
	}
	if t == nil {
		return nil, fmt.Errorf("%w: unknown tool %q", types.ErrToolInvocation, name)
	}

	query, err := QueryArg(args)
	if err != nil {
		return nil, err
	}
	topK, err := intArg(args, "top_k", g.topK)
	if err != nil {
		return nil, err
	}

	records, err := t.searcher.Search(ctx, query, topK, g.minScore)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", types.ErrToolInvocation, name, err)
	}

	kept := make([]types.EvidenceRecord, 0, len(records))
	for _, r := range records {
		if r.Score >= g.minScore {
			kept = append(kept, r)
		}
	}
	if len(kept) > topK {
		kept = kept[:topK]
	}
	g.logger.DebugContext(ctx, "tool invoked", "tool", name, "query", query, "results", len(kept))
	return kept, nil
}

// QueryArg extracts the required non-empty string "query" argument.
func QueryArg(args map[string]any) (string, error) {
	raw, ok := args["query"]
	if !ok {
		return "", fmt.Errorf("%w: missing argument \"query\"", types.ErrToolInvocation)
	}
	q, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument \"query\" must be a string, got %T", types.ErrToolInvocation, raw)
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("%w: argument \"query\" is empty", types.ErrToolInvocation)
	}
	return q, nil
}

func intArg(args map[string]any, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	var n int
	switch v := raw.(type) {
	case float64:
		n = int(v)
	case int:
		n = v
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: argument %q: %v", types.ErrToolInvocation, key, err)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%w: argument %q has type %T", types.ErrToolInvocation, key, raw)
	}
	if n <= 0 || n > 20 {
		return 0, fmt.Errorf("%w: argument %q out of range: %d", types.ErrToolInvocation, key, n)
	}
	return n, nil
}
