package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ragagent/types"
)

const snapshotFile = "index.json"

// FileIndex keeps both collections in memory using brute-force cosine similarity.
// With a non-empty dir every write is persisted as a JSON snapshot, replaced by rename
// so a reader never sees a half-written index.
type FileIndex struct {
	mu       sync.RWMutex
	dir      string
	parents  map[string]types.ParentChunk
	children []types.ChildChunk
}

type snapshot struct {
	Parents  []types.ParentChunk `json:"parents"`
	Children []types.ChildChunk  `json:"children"`
}

// NewMemoryIndex returns an index that is never written to disk.
func NewMemoryIndex() *FileIndex {
	return &FileIndex{parents: map[string]types.ParentChunk{}}
}

// OpenFileIndex loads the snapshot in dir, if any.
func OpenFileIndex(dir string) (*FileIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	idx := &FileIndex{dir: dir, parents: map[string]types.ParentChunk{}}

	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexUnavailable, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot: %v", types.ErrIndexUnavailable, err)
	}
	for _, p := range snap.Parents {
		idx.parents[p.ID] = p
	}
	idx.children = snap.Children
	return idx, nil
}

func (f *FileIndex) AddDocument(ctx context.Context, doc DocumentChunks) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	parents := make(map[string]types.ParentChunk, len(f.parents)+len(doc.Parents))
	for id, p := range f.parents {
		parents[id] = p
	}
	children := append([]types.ChildChunk(nil), f.children...)

	if err := apply(parents, &children, doc); err != nil {
		return err
	}
	return f.commit(parents, children)
}

func (f *FileIndex) ReplaceAll(ctx context.Context, docs []DocumentChunks) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	parents := map[string]types.ParentChunk{}
	var children []types.ChildChunk
	for _, doc := range docs {
		if err := apply(parents, &children, doc); err != nil {
			return err
		}
	}
	return f.commit(parents, children)
}

func apply(parents map[string]types.ParentChunk, children *[]types.ChildChunk, doc DocumentChunks) error {
	for _, p := range doc.Parents {
		parents[p.ID] = p
	}
	for _, c := range doc.Children {
		if _, ok := parents[c.ParentID]; !ok {
			return fmt.Errorf("child %s references unknown parent %s", c.ID, c.ParentID)
		}
		*children = append(*children, c)
	}
	return nil
}

// commit persists the new collections before swapping them in. Caller holds the lock.
func (f *FileIndex) commit(parents map[string]types.ParentChunk, children []types.ChildChunk) error {
	if f.dir != "" {
		snap := snapshot{Parents: make([]types.ParentChunk, 0, len(parents)), Children: children}
		for _, p := range parents {
			snap.Parents = append(snap.Parents, p)
		}
		sort.Slice(snap.Parents, func(i, j int) bool { return snap.Parents[i].ID < snap.Parents[j].ID })

		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		tmp, err := os.CreateTemp(f.dir, snapshotFile+".*")
		if err != nil {
			return err
		}
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return err
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return err
		}
		if err := os.Rename(tmp.Name(), filepath.Join(f.dir, snapshotFile)); err != nil {
			os.Remove(tmp.Name())
			return err
		}
	}
	f.parents = parents
	f.children = children
	return nil
}

func (f *FileIndex) SearchChildren(ctx context.Context, query []float32, limit int) ([]types.ChildHit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	hits := make([]types.ChildHit, 0, len(f.children))
	for _, c := range f.children {
		hits = append(hits, types.ChildHit{Child: c, Score: cosine(c.Embedding, query)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *FileIndex) GetParents(ctx context.Context, ids []string) (map[string]types.ParentChunk, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]types.ParentChunk, len(ids))
	for _, id := range ids {
		if p, ok := f.parents[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *FileIndex) Stats(ctx context.Context) (types.IndexStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return types.IndexStats{Parents: len(f.parents), Children: len(f.children)}, nil
}

func (f *FileIndex) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
