// Package service builds the parent/child index from a corpus.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragagent/loader/internal"
	"ragagent/model"
	"ragagent/store"
	"ragagent/types"
)

const (
	DefaultBatchSize  = 50
	DefaultMaxRetries = 3
)

// BuildReport summarizes one index build.
type BuildReport struct {
	Skipped         bool          `json:"skipped"`
	Documents       int           `json:"documents"`
	ParentsCreated  int           `json:"parents_created"`
	ChildrenCreated int           `json:"children_created"`
	ParentsIndexed  int           `json:"parents_indexed"`
	ChildrenIndexed int           `json:"children_indexed"`
	FailedDocuments []string      `json:"failed_documents,omitempty"`
	Elapsed         time.Duration `json:"elapsed"`
}

type Service struct {
	logger   *slog.Logger
	store    store.IndexStorer
	embedder model.Embedder
	chunker  *internal.Chunker

	batchSize  int
	maxRetries int
	backoff    time.Duration
}

type Option func(*Service)

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRetry sets the attempts per embedding batch and the linear backoff step.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.maxRetries = attempts
		}
		s.backoff = backoff
	}
}

func WithChunker(c *internal.Chunker) Option {
	return func(s *Service) { s.chunker = c }
}

func New(storer store.IndexStorer, embedder model.Embedder, opts ...Option) *Service {
	s := &Service{
		logger:     slog.Default(),
		store:      storer,
		embedder:   embedder,
		chunker:    internal.NewChunker(),
		batchSize:  DefaultBatchSize,
		maxRetries: DefaultMaxRetries,
		backoff:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build indexes docs. With force the previous collections are replaced in one step.
// Without force an existing index is left untouched. A document whose embedding fails
// is skipped as a whole and listed in the report.
func (s *Service) Build(ctx context.Context, docs []types.Document, force bool) (*BuildReport, error) {
	start := time.Now()
	report := &BuildReport{Documents: len(docs)}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if stats.Exists() && !force {
		s.logger.Info("index already exists, skipping build", "parents", stats.Parents, "children", stats.Children)
		report.Skipped = true
		report.ParentsIndexed = stats.Parents
		report.ChildrenIndexed = stats.Children
		report.Elapsed = time.Since(start)
		return report, nil
	}

	var built []store.DocumentChunks
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunks, err := s.prepare(ctx, doc)
		if err != nil {
			s.logger.Error("document failed, not indexed", "source", doc.Source, "err", err)
			report.FailedDocuments = append(report.FailedDocuments, doc.Source)
			continue
		}
		report.ParentsCreated += len(chunks.Parents)
		report.ChildrenCreated += len(chunks.Children)

		if force {
			built = append(built, chunks)
			continue
		}
		if err := s.store.AddDocument(ctx, chunks); err != nil {
			s.logger.Error("document failed to persist", "source", doc.Source, "err", err)
			report.FailedDocuments = append(report.FailedDocuments, doc.Source)
			continue
		}
		report.ParentsIndexed += len(chunks.Parents)
		report.ChildrenIndexed += len(chunks.Children)
	}

	if force {
		if err := s.store.ReplaceAll(ctx, built); err != nil {
			return nil, fmt.Errorf("replace index: %w", err)
		}
		for _, c := range built {
			report.ParentsIndexed += len(c.Parents)
			report.ChildrenIndexed += len(c.Children)
		}
	}

	report.Elapsed = time.Since(start)
	s.logger.Info("index build complete",
		"documents", report.Documents,
		"parents", report.ParentsIndexed,
		"children", report.ChildrenIndexed,
		"failed", len(report.FailedDocuments),
		"elapsed", report.Elapsed)
	return report, nil
}

// prepare chunks and embeds one document entirely in memory.
func (s *Service) prepare(ctx context.Context, doc types.Document) (store.DocumentChunks, error) {
	parents, children := s.chunker.Chunk(doc)
	out := store.DocumentChunks{DocID: doc.ID, Parents: parents, Children: children}
	s.logger.Info("chunked document", "source", doc.Source, "parents", len(parents), "children", len(children))

	texts := make([]string, len(parents))
	for i, p := range parents {
		texts[i] = p.Content
	}
	vecs, err := s.embedAll(ctx, texts)
	if err != nil {
		return out, fmt.Errorf("embed parents: %w", err)
	}
	for i := range parents {
		parents[i].Embedding = vecs[i]
	}

	texts = make([]string, len(children))
	for i, c := range children {
		texts[i] = c.Content
	}
	vecs, err = s.embedAll(ctx, texts)
	if err != nil {
		return out, fmt.Errorf("embed children: %w", err)
	}
	for i := range children {
		children[i].Embedding = vecs[i]
	}
	return out, nil
}

func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		vecs, err := s.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		if dim := s.embedder.Dimension(); dim > 0 {
			for _, v := range vecs {
				if len(v) != dim {
					return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(v), dim)
				}
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embedBatch tries a batch up to maxRetries times, waiting backoff, 2*backoff, ... between attempts.
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if attempt == s.maxRetries {
			break
		}

		wait := s.backoff * time.Duration(attempt)
		s.logger.Warn("embedding batch failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.maxRetries, lastErr)
}

func (s *Service) Stats(ctx context.Context) (types.IndexStats, error) {
	return s.store.Stats(ctx)
}
