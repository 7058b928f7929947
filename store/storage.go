package store

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ragagent/types"
)

// DocumentChunks is the embedded chunk set of one document.
type DocumentChunks struct {
	DocID    string
	Parents  []types.ParentChunk
	Children []types.ChildChunk
}

// IndexStorer holds the parent and child collections.
//
// AddDocument and ReplaceAll are all-or-nothing: a failed call leaves the collections
// as they were, so no child is ever persisted without its parent.
type IndexStorer interface {
	AddDocument(context.Context, DocumentChunks) error
	ReplaceAll(context.Context, []DocumentChunks) error
	SearchChildren(ctx context.Context, query []float32, limit int) ([]types.ChildHit, error)
	GetParents(ctx context.Context, ids []string) (map[string]types.ParentChunk, error)
	Stats(context.Context) (types.IndexStats, error)
	Close() error
}

type PostgresIndex struct {
	pool   *pgxpool.Pool
	dim    int
	logger *slog.Logger
}

func NewPostgresPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// NewPostgresIndex uses pool for both collections. The pool is closed by Close.
func NewPostgresIndex(pool *pgxpool.Pool, dim int) *PostgresIndex {
	return &PostgresIndex{
		pool:   pool,
		dim:    dim,
		logger: slog.Default(),
	}
}

func (p *PostgresIndex) Init(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS parent_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		position INT NOT NULL,
		title TEXT,
		url TEXT,
		section TEXT,
		content TEXT NOT NULL,
		embedding vector(%[1]d)
	);

	CREATE TABLE IF NOT EXISTS child_chunks (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL REFERENCES parent_chunks(id) ON DELETE CASCADE,
		position INT NOT NULL,
		section TEXT,
		content TEXT NOT NULL,
		embedding vector(%[1]d) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_parent_chunks_doc_id ON parent_chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_child_chunks_parent_id ON child_chunks(parent_id);
	CREATE INDEX IF NOT EXISTS idx_child_chunks_embedding ON child_chunks USING hnsw (embedding vector_cosine_ops);
	`, p.dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresIndex) AddDocument(ctx context.Context, doc DocumentChunks) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return insertChunks(ctx, tx, doc)
	})
}

func (p *PostgresIndex) ReplaceAll(ctx context.Context, docs []DocumentChunks) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "TRUNCATE child_chunks, parent_chunks"); err != nil {
			return fmt.Errorf("clear collections: %w", err)
		}
		for _, doc := range docs {
			if err := insertChunks(ctx, tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertChunks(ctx context.Context, tx pgx.Tx, doc DocumentChunks) error {
	batch := &pgx.Batch{}
	for _, c := range doc.Parents {
		batch.Queue(`
		INSERT INTO parent_chunks (id, doc_id, position, title, url, section, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.DocID, c.Index, c.Title, c.URL, c.Section, c.Content, pgvector.NewVector(c.Embedding))
	}
	for _, c := range doc.Children {
		batch.Queue(`
		INSERT INTO child_chunks (id, parent_id, position, section, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.ParentID, c.Index, c.Section, c.Content, pgvector.NewVector(c.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert chunks of %s: %w", doc.DocID, err)
	}
	return nil
}

func (p *PostgresIndex) SearchChildren(ctx context.Context, queryVec []float32, limit int) ([]types.ChildHit, error) {
	if len(queryVec) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	query := `
		SELECT id, parent_id, position, COALESCE(section, ''), content,
		       1-(embedding <=> $1) AS score
		FROM child_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var hits []types.ChildHit
	for rows.Next() {
		var h types.ChildHit
		if err := rows.Scan(&h.Child.ID, &h.Child.ParentID, &h.Child.Index, &h.Child.Section, &h.Child.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
		}
		p.logger.Debug("child hit", "id", h.Child.ID, "parent", h.Child.ParentID, "score", h.Score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	return hits, nil
}

func (p *PostgresIndex) GetParents(ctx context.Context, ids []string) (map[string]types.ParentChunk, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, doc_id, position, COALESCE(title, ''), COALESCE(url, ''), COALESCE(section, ''), content
		FROM parent_chunks
		WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}

	parents, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.ParentChunk, error) {
		var c types.ParentChunk
		err := row.Scan(&c.ID, &c.DocID, &c.Index, &c.Title, &c.URL, &c.Section, &c.Content)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}

	out := make(map[string]types.ParentChunk, len(parents))
	for _, c := range parents {
		out[c.ID] = c
	}
	return out, nil
}

func (p *PostgresIndex) Stats(ctx context.Context) (types.IndexStats, error) {
	var s types.IndexStats
	err := p.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM parent_chunks), (SELECT count(*) FROM child_chunks)`).
		Scan(&s.Parents, &s.Children)
	if err != nil {
		return s, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}
	return s, nil
}

// Close closes the pool shared with the session store.
func (p *PostgresIndex) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
