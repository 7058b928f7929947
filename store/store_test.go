package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragagent/types"
)

func docChunks(source string, vecs ...[]float32) DocumentChunks {
	parentID := source + "_parent_0"
	d := DocumentChunks{
		DocID:   source,
		Parents: []types.ParentChunk{{ID: parentID, DocID: source, Title: source, Content: "parent of " + source, Embedding: []float32{1, 0}}},
	}
	for i, v := range vecs {
		d.Children = append(d.Children, types.ChildChunk{
			ID:        parentID + "_child_" + string(rune('0'+i)),
			ParentID:  parentID,
			Index:     i,
			Content:   "child",
			Embedding: v,
		})
	}
	return d
}

func TestFileIndex_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.AddDocument(ctx, docChunks("a", []float32{1, 0}, []float32{0, 1}, []float32{0.7, 0.7})))

	hits, err := idx.SearchChildren(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a_parent_0_child_0", hits[0].Child.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "a_parent_0_child_2", hits[1].Child.ID)
	assert.InDelta(t, 0.7071, hits[1].Score, 1e-3)
}

func TestFileIndex_RejectsDanglingParent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	bad := docChunks("a", []float32{1, 0})
	bad.Children[0].ParentID = "missing"

	require.Error(t, idx.AddDocument(ctx, bad))
	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.IndexStats{}, stats)
}

func TestFileIndex_ReplaceAllAndSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := OpenFileIndex(dir)
	require.NoError(t, err)
	require.NoError(t, idx.AddDocument(ctx, docChunks("old", []float32{1, 0})))
	require.NoError(t, idx.ReplaceAll(ctx, []DocumentChunks{
		docChunks("a", []float32{1, 0}),
		docChunks("b", []float32{0, 1}, []float32{0.5, 0.5}),
	}))

	reopened, err := OpenFileIndex(dir)
	require.NoError(t, err)
	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.IndexStats{Parents: 2, Children: 3}, stats)

	parents, err := reopened.GetParents(ctx, []string{"old_parent_0", "b_parent_0"})
	require.NoError(t, err)
	assert.NotContains(t, parents, "old_parent_0")
	assert.Equal(t, "parent of b", parents["b_parent_0"].Content)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenFileIndex_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFile), []byte("{not json"), 0o644))
	_, err := OpenFileIndex(dir)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)
}

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	_, err := s.Load(ctx, "t1")
	assert.ErrorIs(t, err, types.ErrNotFound)

	state := types.NewAgentState(3)
	state.Messages = append(state.Messages, types.NewMessage(types.RoleUser, "hi"))
	state.IterationCount = 2
	require.NoError(t, s.Save(ctx, "t1", state))

	state.Messages[0].Content = "mutated"
	loaded, err := s.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "hi", loaded.Messages[0].Content)
	assert.Equal(t, 2, loaded.IterationCount)
	assert.False(t, loaded.UpdatedAt.IsZero())

	require.NoError(t, s.Delete(ctx, "t1"))
	assert.ErrorIs(t, s.Delete(ctx, "t1"), types.ErrNotFound)
}

func TestThreadLocks(t *testing.T) {
	locks := NewThreadLocks()

	release, ok := locks.TryLock("t1")
	require.True(t, ok)
	assert.True(t, locks.Busy("t1"))

	_, ok = locks.TryLock("t1")
	assert.False(t, ok)

	_, ok = locks.TryLock("t2")
	assert.True(t, ok)

	release()
	release()
	assert.False(t, locks.Busy("t1"))
}

func TestThreadLocks_Concurrent(t *testing.T) {
	locks := NewThreadLocks()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := locks.TryLock("same"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
