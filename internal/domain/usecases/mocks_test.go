package usecases

import (
	"context"
	"sync"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// mockEmbedder implements ports.EmbeddingService for testing
type mockEmbedder struct {
	embedFn    func(text string) ([]float32, error)
	batchSizes []int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	chunks   []entities.Chunk
	deleted  []string
	replaced []string
	storeFn  func(chunks []entities.Chunk) error
}

func (m *mockVectorStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if m.storeFn != nil {
		return m.storeFn(chunks)
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Search(ctx context.Context, emb []float32, topK int) ([]entities.QueryResult, error) {
	var results []entities.QueryResult
	for i, c := range m.chunks {
		if i >= topK {
			break
		}
		results = append(results, entities.QueryResult{Chunk: c, Score: 0.9, SourceDoc: c.Source})
	}
	return results, nil
}

func (m *mockVectorStore) Replace(ctx context.Context, docID string, chunks []entities.Chunk) error {
	if m.storeFn != nil {
		if err := m.storeFn(chunks); err != nil {
			return err
		}
	}
	m.replaced = append(m.replaced, docID)
	m.dropDocument(docID)
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Delete(ctx context.Context, docID string) error {
	m.deleted = append(m.deleted, docID)
	m.dropDocument(docID)
	return nil
}

func (m *mockVectorStore) dropDocument(docID string) {
	var kept []entities.Chunk
	for _, c := range m.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.chunks = nil
	return nil
}

// mockLLM implements ports.LLMService for testing. Responses are returned in order;
// the last one repeats once the list is exhausted.
type mockLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []entities.CompletionRequest
}

func (m *mockLLM) Generate(ctx context.Context, req entities.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *mockLLM) Name() string {
	return "mock:test"
}

func (m *mockLLM) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
