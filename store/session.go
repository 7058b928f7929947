package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragagent/types"
)

// SessionStorer persists AgentState per thread. Load returns types.ErrNotFound for an
// unknown thread and always hands out a copy.
type SessionStorer interface {
	Load(ctx context.Context, threadID string) (*types.AgentState, error)
	Save(ctx context.Context, threadID string, state *types.AgentState) error
	Delete(ctx context.Context, threadID string) error
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.AgentState
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]*types.AgentState{}}
}

func (m *MemorySessionStore) Load(ctx context.Context, threadID string) (*types.AgentState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[threadID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Save(ctx context.Context, threadID string, state *types.AgentState) error {
	c := state.Clone()
	c.UpdatedAt = time.Now().UTC()
	m.mu.Lock()
	m.sessions[threadID] = c
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[threadID]; !ok {
		return types.ErrNotFound
	}
	delete(m.sessions, threadID)
	return nil
}

// PostgresSessionStore keeps each thread's state as a JSONB document.
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionStore(pool *pgxpool.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

func (p *PostgresSessionStore) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS thread_sessions (
		thread_id TEXT PRIMARY KEY,
		state JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL
	);`)
	return err
}

func (p *PostgresSessionStore) Load(ctx context.Context, threadID string) (*types.AgentState, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, "SELECT state FROM thread_sessions WHERE thread_id = $1", threadID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", threadID, err)
	}

	var state types.AgentState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", threadID, err)
	}
	return &state, nil
}

func (p *PostgresSessionStore) Save(ctx context.Context, threadID string, state *types.AgentState) error {
	c := state.Clone()
	c.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO thread_sessions (thread_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (thread_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at`,
		threadID, raw, c.UpdatedAt)
	return err
}

func (p *PostgresSessionStore) Delete(ctx context.Context, threadID string) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM thread_sessions WHERE thread_id = $1", threadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
