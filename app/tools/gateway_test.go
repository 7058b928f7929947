package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragagent/config"
	"ragagent/types"
)

type stubSearcher struct {
	records []types.EvidenceRecord
	err     error
	gotTopK int
}

func (s *stubSearcher) Search(ctx context.Context, query string, topK int, minScore float64) ([]types.EvidenceRecord, error) {
	s.gotTopK = topK
	return s.records, s.err
}

func cfg(mode config.Mode) *config.Config {
	return &config.Config{Mode: mode, TopK: 3, MinScore: 0.3}
}

func TestNewGateway_ModeRegistration(t *testing.T) {
	g, err := NewGateway(cfg(config.ModeOffline), &stubSearcher{}, &stubSearcher{})
	require.NoError(t, err)
	assert.Equal(t, []string{SearchDocs}, g.Names())

	g, err = NewGateway(cfg(config.ModeOnline), &stubSearcher{}, &stubSearcher{})
	require.NoError(t, err)
	assert.Equal(t, []string{SearchDocs, WebSearch}, g.Names())
	require.Len(t, g.Specs(), 2)
	assert.Equal(t, []string{"query"}, g.Specs()[1].Required)

	_, err = NewGateway(cfg(config.ModeOnline), &stubSearcher{}, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestInvoke_Errors(t *testing.T) {
	g, err := NewGateway(cfg(config.ModeOffline), &stubSearcher{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = g.Invoke(ctx, WebSearch, map[string]any{"query": "x"})
	assert.ErrorIs(t, err, types.ErrToolInvocation)

	_, err = g.Invoke(ctx, SearchDocs, map[string]any{})
	assert.ErrorIs(t, err, types.ErrToolInvocation)

	_, err = g.Invoke(ctx, SearchDocs, map[string]any{"query": 42})
	assert.ErrorIs(t, err, types.ErrToolInvocation)

	_, err = g.Invoke(ctx, SearchDocs, map[string]any{"query": "  "})
	assert.ErrorIs(t, err, types.ErrToolInvocation)

	_, err = g.Invoke(ctx, SearchDocs, map[string]any{"query": "x", "top_k": "many"})
	assert.ErrorIs(t, err, types.ErrToolInvocation)
}

func TestInvoke_ProviderErrorIsToolError(t *testing.T) {
	g, err := NewGateway(cfg(config.ModeOffline), &stubSearcher{err: errors.New("connection refused")}, nil)
	require.NoError(t, err)
	_, err = g.Invoke(context.Background(), SearchDocs, map[string]any{"query": "x"})
	assert.ErrorIs(t, err, types.ErrToolInvocation)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInvoke_FiltersAndCaps(t *testing.T) {
	docs := &stubSearcher{records: []types.EvidenceRecord{
		{ID: "a", Score: 0.9}, {ID: "low", Score: 0.1}, {ID: "b", Score: 0.5}, {ID: "c", Score: 0.4}, {ID: "d", Score: 0.35},
	}}
	g, err := NewGateway(cfg(config.ModeOffline), docs, nil)
	require.NoError(t, err)

	got, err := g.Invoke(context.Background(), SearchDocs, map[string]any{"query": "x", "top_k": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, docs.gotTopK)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	got, err = g.Invoke(context.Background(), SearchDocs, map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Score, 0.3)
	}
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		var req tavilyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "langgraph checkpointer", req.Query)
		assert.Equal(t, 3, req.MaxResults)
		fmt.Fprint(w, `{"results":[
			{"title":"Persistence","url":"https://a.dev/persistence","content":"Checkpointers save state","score":0.92},
			{"title":"Noise","url":"https://b.dev","content":"unrelated","score":0.05},
			{"title":"Blog","url":"https://c.dev/blog","content":"no score given"}
		]}`)
	}))
	defer srv.Close()

	got, err := NewTavilySearch(srv.URL, "tvly-test").Search(context.Background(), "langgraph checkpointer", 3, 0.3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.EvidenceRecord{
		ID: "https://a.dev/persistence", Text: "Checkpointers save state", Source: "https://a.dev/persistence",
		Title: "Persistence", Score: 0.92, Origin: types.OriginWeb,
	}, got[0])
	assert.InDelta(t, defaultWebScore, got[1].Score, 1e-9)
}

func TestTavilySearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewTavilySearch(srv.URL, "bad").Search(context.Background(), "q", 3, 0.3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
