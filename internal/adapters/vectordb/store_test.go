package vectordb

import (
	"context"
	"errors"
	"testing"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

type countingStore interface {
	ports.VectorStore
	ChunkCount(ctx context.Context) (int, error)
}

// forEachStore runs fn against both implementations.
func forEachStore(t *testing.T, fn func(t *testing.T, store countingStore)) {
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteStore(t.TempDir())
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		defer store.Close()
		fn(t, store)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryStore())
	})
}

func TestStore_StoreAndSearch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		chunks := []entities.Chunk{
			{ID: "c1", DocumentID: "doc1", Source: "annex11.md", Content: "hello", Embedding: []float32{1.0, 0.0, 0.0}},
			{ID: "c2", DocumentID: "doc1", Source: "annex11.md", Content: "world", Index: 1, Embedding: []float32{0.0, 1.0, 0.0}},
		}

		if err := store.Store(ctx, chunks); err != nil {
			t.Fatalf("store failed: %v", err)
		}

		results, err := store.Search(ctx, []float32{1.0, 0.0, 0.0}, 2)
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}

		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		if results[0].Chunk.ID != "c1" {
			t.Error("c1 should be top result")
		}
		if results[0].SourceDoc != "annex11.md" || results[1].Chunk.Index != 1 {
			t.Errorf("metadata not round-tripped: %+v", results)
		}
		if results[0].Score < results[1].Score {
			t.Error("results should be sorted best first")
		}
	})
}

func TestStore_TopK(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		store.Store(ctx, []entities.Chunk{
			{ID: "a", DocumentID: "d", Embedding: []float32{1, 0}},
			{ID: "b", DocumentID: "d", Embedding: []float32{0.9, 0.1}},
			{ID: "c", DocumentID: "d", Embedding: []float32{0, 1}},
		})
		results, err := store.Search(ctx, []float32{1, 0}, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].Chunk.ID != "a" {
			t.Errorf("unexpected results %+v", results)
		}
	})
}

func TestStore_EmptySearch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		results, err := store.Search(context.Background(), []float32{1, 0}, 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
	})
}

func TestStore_DimensionMismatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		store.Store(ctx, []entities.Chunk{{ID: "c1", DocumentID: "d", Embedding: []float32{1, 0, 0}}})
		_, err := store.Search(ctx, []float32{1, 0}, 5)
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})
}

func TestStore_RejectsMissingEmbedding(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		err := store.Store(context.Background(), []entities.Chunk{{ID: "c1", DocumentID: "d"}})
		if err == nil {
			t.Error("expected error for chunk without embedding")
		}
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		store.Store(ctx, []entities.Chunk{
			{ID: "c1", DocumentID: "doc1", Content: "test", Embedding: []float32{1, 0, 0}},
			{ID: "c2", DocumentID: "doc2", Content: "keep", Embedding: []float32{0, 1, 0}},
		})

		if err := store.Delete(ctx, "doc1"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		results, _ := store.Search(ctx, []float32{1, 0, 0}, 10)
		if len(results) != 1 || results[0].Chunk.ID != "c2" {
			t.Errorf("only doc1 chunks should be deleted, got %+v", results)
		}
	})
}

func TestStore_Replace(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		store.Store(ctx, []entities.Chunk{
			{ID: "old1", DocumentID: "sop", Embedding: []float32{1, 0}},
			{ID: "old2", DocumentID: "sop", Embedding: []float32{1, 0}},
			{ID: "other", DocumentID: "guide", Embedding: []float32{0, 1}},
		})

		err := store.Replace(ctx, "sop", []entities.Chunk{{ID: "new1", DocumentID: "sop", Embedding: []float32{1, 0}}})
		if err != nil {
			t.Fatalf("replace failed: %v", err)
		}

		results, _ := store.Search(ctx, []float32{1, 0}, 10)
		ids := map[string]bool{}
		for _, r := range results {
			ids[r.Chunk.ID] = true
		}
		if len(ids) != 2 || !ids["new1"] || !ids["other"] {
			t.Errorf("expected new1 and other, got %v", ids)
		}
	})
}

func TestStore_FailedReplaceKeepsOldChunks(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		store.Store(ctx, []entities.Chunk{
			{ID: "old1", DocumentID: "sop", Embedding: []float32{1, 0}},
			{ID: "old2", DocumentID: "sop", Embedding: []float32{0, 1}},
		})

		err := store.Replace(ctx, "sop", []entities.Chunk{
			{ID: "new1", DocumentID: "sop", Embedding: []float32{1, 0}},
			{ID: "new2", DocumentID: "sop"},
		})
		if err == nil {
			t.Fatal("expected error for chunk without embedding")
		}

		count, _ := store.ChunkCount(ctx)
		if count != 2 {
			t.Errorf("failed replace should keep the 2 old chunks, have %d", count)
		}
		results, _ := store.Search(ctx, []float32{1, 0}, 10)
		for _, r := range results {
			if r.Chunk.ID == "new1" {
				t.Error("partial replacement leaked into the store")
			}
		}
	})
}

func TestStore_Clear(t *testing.T) {
	forEachStore(t, func(t *testing.T, store countingStore) {
		ctx := context.Background()
		store.Store(ctx, []entities.Chunk{
			{ID: "c1", DocumentID: "d", Embedding: []float32{1, 0, 0}},
			{ID: "c2", DocumentID: "d", Embedding: []float32{0, 1, 0}},
		})

		store.Clear(ctx)

		count, _ := store.ChunkCount(ctx)
		if count != 0 {
			t.Errorf("expected 0 chunks after clear, got %d", count)
		}
	})
}

func TestSQLiteStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	store.Store(ctx, []entities.Chunk{{ID: "c1", DocumentID: "d", Content: "GAMP 5", Embedding: []float32{0.25, 0.5}}})
	store.Close()

	reopened, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	results, err := reopened.Search(ctx, []float32{0.25, 0.5}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.Content != "GAMP 5" {
		t.Fatalf("chunk not persisted: %+v", results)
	}
	if results[0].Chunk.Embedding[1] != 0.5 {
		t.Errorf("embedding not round-tripped: %v", results[0].Chunk.Embedding)
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	same := cosineSimilarity(a, b)
	diff := cosineSimilarity(a, c)

	if same != 1.0 {
		t.Errorf("same vectors should have score 1.0, got %f", same)
	}
	if diff != 0.0 {
		t.Errorf("orthogonal vectors should have score 0.0, got %f", diff)
	}
	if cosineSimilarity(a, []float32{0, 0, 0}) != 0 {
		t.Error("zero vector should score 0")
	}
}
