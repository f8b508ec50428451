package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_EmbedBatchOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "text-embedding-3-small", req["model"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0.2]},
			{"object":"embedding","index":0,"embedding":[0.1]}
		]}`))
	}))
	defer server.Close()

	adapter, err := NewOpenAIAdapter("sk-test", server.URL+"/v1", "")
	require.NoError(t, err)

	out, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1}, {0.2}}, out)
	assert.Equal(t, "openai:text-embedding-3-small", adapter.Name())
}

func TestOpenAIAdapter_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	adapter, err := NewOpenAIAdapter("sk-test", server.URL+"/v1", "m")
	require.NoError(t, err)
	_, err = adapter.Embed(context.Background(), "a")
	assert.Error(t, err)
}

func TestGeminiAdapter_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/emb-test:batchEmbedContents"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings":[{"values":[1,2]},{"values":[3,4]}]}`))
	}))
	defer server.Close()

	adapter, err := NewGeminiAdapter(context.Background(), "g-key", server.URL, "emb-test")
	require.NoError(t, err)

	out, err := adapter.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, out)
}

func TestGeminiAdapter_SplitsLargeBatches(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Requests []json.RawMessage `json:"requests"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		sizes = append(sizes, len(req.Requests))
		mu.Unlock()

		embeddings := make([]map[string][]float32, len(req.Requests))
		for i := range embeddings {
			embeddings[i] = map[string][]float32{"values": {float32(i)}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer server.Close()

	adapter, err := NewGeminiAdapter(context.Background(), "g-key", server.URL, "emb-test")
	require.NoError(t, err)

	texts := make([]string, 2*geminiMaxBatch+17)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk %d", i)
	}
	out, err := adapter.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, out, len(texts))
	assert.Equal(t, []int{geminiMaxBatch, geminiMaxBatch, 17}, sizes)
	assert.Equal(t, []float32{16}, out[len(out)-1], "results keep input order across requests")
}

func TestProviders_RequireKeys(t *testing.T) {
	_, err := NewOpenAIAdapter("", "", "")
	assert.Error(t, err)
	_, err = NewGeminiAdapter(context.Background(), "", "", "")
	assert.Error(t, err)
}

type countingEmbedder struct {
	mu    sync.Mutex
	seen  []string
	fail  bool
	model string
}

func (c *countingEmbedder) Name() string { return c.model }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		c.seen = append(c.seen, t)
		out[i] = []float32{float32(len(t)), 0.5}
	}
	return out, nil
}

type cacheCounts struct{ hits, misses int }

func (c *cacheCounts) ObserveEmbeddingCache(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func TestCached_OnlyEmbedsMisses(t *testing.T) {
	db, err := OpenCache("", nil)
	require.NoError(t, err)
	defer db.Close()

	inner := &countingEmbedder{model: "test:m"}
	counts := &cacheCounts{}
	cached := NewCached(inner, db, counts, nil)

	first, err := cached.EmbedBatch(context.Background(), []string{"alpha", "be"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{5, 0.5}, {2, 0.5}}, first)

	second, err := cached.EmbedBatch(context.Background(), []string{"be", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 0.5}, {5, 0.5}}, second)

	assert.Equal(t, []string{"alpha", "be", "gamma"}, inner.seen)
	assert.Equal(t, 1, counts.hits)
	assert.Equal(t, 3, counts.misses)
}

func TestCached_KeyedByModel(t *testing.T) {
	db, err := OpenCache("", nil)
	require.NoError(t, err)
	defer db.Close()

	a := &countingEmbedder{model: "a:m"}
	b := &countingEmbedder{model: "b:m"}
	_, err = NewCached(a, db, nil, nil).Embed(context.Background(), "same")
	require.NoError(t, err)
	_, err = NewCached(b, db, nil, nil).Embed(context.Background(), "same")
	require.NoError(t, err)

	assert.Len(t, b.seen, 1, "a different model must not reuse cached vectors")
}

func TestCached_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db, err := OpenCache(dir, nil)
	require.NoError(t, err)
	_, err = NewCached(&countingEmbedder{model: "m"}, db, nil, nil).Embed(context.Background(), "persist me")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenCache(dir, nil)
	require.NoError(t, err)
	defer db.Close()
	inner := &countingEmbedder{model: "m", fail: true}
	vec, err := NewCached(inner, db, nil, nil).Embed(context.Background(), "persist me")
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 0.5}, vec)
}

func TestCached_PropagatesErrors(t *testing.T) {
	db, err := OpenCache("", nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = NewCached(&countingEmbedder{model: "m", fail: true}, db, nil, nil).Embed(context.Background(), "x")
	assert.EqualError(t, err, "provider down")
}

type wideEmbedder struct{ dims int }

func (w wideEmbedder) Name() string { return "wide" }

func (w wideEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, w.dims), nil
}

func (w wideEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, w.dims)
		out[i][0] = float32(i)
	}
	return out, nil
}

func TestCached_WritesBatchesLargerThanOneTransaction(t *testing.T) {
	db, err := OpenCache(t.TempDir(), nil)
	require.NoError(t, err)
	defer db.Close()

	// About 18 MiB of vectors, well over badger's per-transaction limit.
	texts := make([]string, 3000)
	for i := range texts {
		texts[i] = fmt.Sprintf("guidance paragraph %d", i)
	}
	cached := NewCached(wideEmbedder{dims: 1536}, db, nil, nil)

	out, err := cached.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, len(texts))

	counts := &cacheCounts{}
	again, err := NewCached(wideEmbedder{dims: 1536}, db, counts, nil).EmbedBatch(context.Background(), texts[2990:])
	require.NoError(t, err)
	assert.Equal(t, 10, counts.hits, "vectors must be persisted")
	assert.Equal(t, float32(2990), again[0][0])
}
