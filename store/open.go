package store

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragagent/config"
)

// Backends are the index and session stores selected by configuration.
type Backends struct {
	Index    IndexStorer
	Sessions SessionStorer
	pool     *pgxpool.Pool
}

// Open connects the configured backends. Postgres tables are created when missing.
func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{}

	if cfg.UsesPostgres() {
		pool, err := NewPostgresPool(ctx, cfg.PG.ConnString())
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		b.pool = pool
	}

	switch cfg.IndexBackend {
	case config.BackendPostgres:
		idx := NewPostgresIndex(b.pool, cfg.EmbeddingDim)
		if err := idx.Init(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("create index tables: %w", err)
		}
		b.Index = idx
	default:
		idx, err := OpenFileIndex(cfg.DataDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Index = idx
	}

	switch cfg.SessionBackend {
	case config.BackendPostgres:
		s := NewPostgresSessionStore(b.pool)
		if err := s.Init(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("create session table: %w", err)
		}
		b.Sessions = s
	default:
		b.Sessions = NewMemorySessionStore()
	}

	log.Printf("[STORE] index=%s sessions=%s", cfg.IndexBackend, cfg.SessionBackend)
	return b, nil
}

func (b *Backends) Close() {
	if b.Index != nil {
		b.Index.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
