// Package retriever matches queries against child chunks and returns their parents.
package retriever

import (
	"context"
	"errors"
	"log/slog"

	"ragagent/model"
	"ragagent/store"
	"ragagent/types"
)

const (
	DefaultTopK     = 3
	DefaultMinScore = 0.3
)

type Retriever struct {
	index    store.IndexStorer
	embedder model.Embedder
	logger   *slog.Logger
}

func New(index store.IndexStorer, embedder model.Embedder) *Retriever {
	return &Retriever{
		index:    index,
		embedder: embedder,
		logger:   slog.Default(),
	}
}

// Search returns at most topK evidence records with score >= minScore, one per parent,
// carrying the parent text and the best child score. An unreachable index yields an
// empty result, not an error. Embedding failures are returned.
func (r *Retriever) Search(ctx context.Context, query string, topK int, minScore float64) ([]types.EvidenceRecord, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.SearchChildren(ctx, vec, topK)
	if err != nil {
		if errors.Is(err, types.ErrIndexUnavailable) {
			r.logger.WarnContext(ctx, "index unavailable, returning no evidence", "err", err)
			return []types.EvidenceRecord{}, nil
		}
		return nil, err
	}

	var kept []types.ChildHit
	var parentIDs []string
	seen := map[string]bool{}
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		if seen[h.Child.ParentID] {
			continue
		}
		seen[h.Child.ParentID] = true
		kept = append(kept, h)
		parentIDs = append(parentIDs, h.Child.ParentID)
	}
	if len(kept) == 0 {
		r.logger.DebugContext(ctx, "no child above threshold", "query", query, "candidates", len(hits))
		return []types.EvidenceRecord{}, nil
	}

	parents, err := r.index.GetParents(ctx, parentIDs)
	if err != nil {
		if errors.Is(err, types.ErrIndexUnavailable) {
			r.logger.WarnContext(ctx, "parent lookup failed, returning no evidence", "err", err)
			return []types.EvidenceRecord{}, nil
		}
		return nil, err
	}

	out := make([]types.EvidenceRecord, 0, len(kept))
	for _, h := range kept {
		p, ok := parents[h.Child.ParentID]
		if !ok {
			r.logger.WarnContext(ctx, "child references missing parent", "child", h.Child.ID, "parent", h.Child.ParentID)
			continue
		}
		title := p.Title
		if p.Section != "" {
			title = p.Section
		}
		out = append(out, types.EvidenceRecord{
			ID:     p.ID,
			Text:   p.Content,
			Source: p.URL,
			Title:  title,
			Score:  h.Score,
			Origin: types.OriginDocs,
		})
	}
	r.logger.DebugContext(ctx, "search_docs", "query", query, "hits", len(hits), "evidence", len(out))
	return out, nil
}

func (r *Retriever) Stats(ctx context.Context) (types.IndexStats, error) {
	return r.index.Stats(ctx)
}
