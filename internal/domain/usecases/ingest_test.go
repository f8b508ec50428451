package usecases

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

func TestIngestUseCase_ChunksDocument(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 20)

	doc := &entities.Document{
		ID:      "doc-1",
		Name:    "annex11.txt",
		Content: "This is some content that should be chunked properly.",
	}

	n, err := uc.Ingest(context.Background(), doc)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if n == 0 || len(store.chunks) != n {
		t.Errorf("expected %d chunks to be stored, got %d", n, len(store.chunks))
	}
	if store.chunks[0].Source != "annex11.txt" {
		t.Errorf("chunk should carry source name, got %q", store.chunks[0].Source)
	}
}

func TestIngestUseCase_EmptyDocument(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 20)

	doc := &entities.Document{ID: "empty", Name: "empty.txt", Content: "   "}
	n, err := uc.Ingest(context.Background(), doc)

	if err != nil {
		t.Error("empty doc should not error")
	}
	if n != 0 || len(store.chunks) != 0 {
		t.Error("empty doc should produce no chunks")
	}
}

func TestIngestUseCase_LargeDocument(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 50, 10)

	doc := &entities.Document{
		ID:      "big",
		Name:    "big.txt",
		Content: strings.Repeat("word ", 40),
	}

	if _, err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(store.chunks) < 2 {
		t.Errorf("expected multiple chunks, got %d", len(store.chunks))
	}
	seen := map[string]bool{}
	for _, c := range store.chunks {
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestIngestUseCase_ReplacesPreviousVersion(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 10)

	doc := &entities.Document{ID: "sop", Name: "sop.md", Content: "# SOP\n\nFirst version of the procedure."}
	if _, err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	first := len(store.chunks)

	if _, err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if len(store.chunks) != first {
		t.Errorf("re-ingest should replace chunks: had %d, now %d", first, len(store.chunks))
	}
	if len(store.replaced) != 2 || store.replaced[0] != "sop" {
		t.Errorf("expected a replace per ingest, got %v", store.replaced)
	}
}

func TestIngestUseCase_EmbedsInBoundedBatches(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 20, 0)

	doc := &entities.Document{ID: "gamp5", Name: "gamp5.txt", Content: strings.Repeat("validation ", 1000)}
	n, err := uc.Ingest(context.Background(), doc)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if n <= embedBatchSize {
		t.Fatalf("need more than %d chunks to exercise batching, got %d", embedBatchSize, n)
	}
	total := 0
	for _, size := range embedder.batchSizes {
		if size > embedBatchSize {
			t.Errorf("batch of %d exceeds limit %d", size, embedBatchSize)
		}
		total += size
	}
	if total != n || len(embedder.batchSizes) < 2 {
		t.Errorf("expected %d chunks over several batches, got %v", n, embedder.batchSizes)
	}
	for _, c := range store.chunks {
		if len(c.Embedding) == 0 {
			t.Fatalf("chunk %s stored without embedding", c.ID)
		}
	}
}

func TestIngestUseCase_FailedStoreKeepsPreviousVersion(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 10)

	doc := &entities.Document{ID: "sop", Name: "sop.md", Content: "# SOP\n\nFirst version of the procedure."}
	if _, err := uc.Ingest(context.Background(), doc); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	before := len(store.chunks)

	store.storeFn = func([]entities.Chunk) error { return errors.New("disk full") }
	doc.Content = "# SOP\n\nSecond version."
	if _, err := uc.Ingest(context.Background(), doc); err == nil {
		t.Fatal("store failure should propagate")
	}
	if len(store.chunks) != before || len(store.deleted) != 0 {
		t.Errorf("failed re-ingest must keep the previous %d chunks, have %d (deleted %v)", before, len(store.chunks), store.deleted)
	}
}

func TestIngestUseCase_Clear(t *testing.T) {
	store := &mockVectorStore{chunks: []entities.Chunk{{ID: "c1"}}}
	uc := NewIngestUseCase(&mockEmbedder{}, store, 100, 20)

	if err := uc.Clear(context.Background()); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if len(store.chunks) != 0 {
		t.Errorf("expected empty store, got %d chunks", len(store.chunks))
	}
}

func TestIngestUseCase_EmbeddingError(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) {
		return nil, errors.New("provider down")
	}}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 20)

	_, err := uc.Ingest(context.Background(), &entities.Document{ID: "d", Name: "d.txt", Content: "text"})
	if err == nil {
		t.Fatal("embedding failure should propagate")
	}
	if len(store.chunks) != 0 {
		t.Error("nothing should be stored after a failure")
	}
}

func TestIngestUseCase_Delete(t *testing.T) {
	embedder := &mockEmbedder{}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, 100, 20)

	err := uc.Delete(context.Background(), "doc-1")
	if err != nil {
		t.Errorf("delete failed: %v", err)
	}
}

func TestGenerateChunkID_Deterministic(t *testing.T) {
	if generateChunkID("doc", 1) != generateChunkID("doc", 1) {
		t.Error("chunk ids should be deterministic")
	}
	if generateChunkID("doc", 1) == generateChunkID("doc", 2) {
		t.Error("different indexes should give different ids")
	}
}
