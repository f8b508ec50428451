package vectordb

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// InMemoryStore is a vector store that lives for one process, used by
// ephemeral runs and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]entities.Chunk // chunkID -> chunk
	docs   map[string][]string       // docID -> []chunkID
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chunks: make(map[string]entities.Chunk),
		docs:   make(map[string][]string),
	}
}

// Store saves chunks with their embeddings.
func (s *InMemoryStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	s.insert(chunks)
	return nil
}

// Replace swaps the document's chunks under a single lock.
func (s *InMemoryStore) Replace(ctx context.Context, documentID string, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkEmbeddings(chunks); err != nil {
		return err
	}
	s.remove(documentID)
	s.insert(chunks)
	return nil
}

func (s *InMemoryStore) insert(chunks []entities.Chunk) {
	for _, chunk := range chunks {
		if _, exists := s.chunks[chunk.ID]; !exists {
			s.docs[chunk.DocumentID] = append(s.docs[chunk.DocumentID], chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
}

func (s *InMemoryStore) remove(documentID string) {
	for _, id := range s.docs[documentID] {
		delete(s.chunks, id)
	}
	delete(s.docs, documentID)
}

func checkEmbeddings(chunks []entities.Chunk) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", chunk.ID)
		}
	}
	return nil
}

// Search returns the topK chunks most similar to embedding, best first.
func (s *InMemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]entities.QueryResult, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		if len(chunk.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: query has %d dimensions, chunk %s has %d",
				ErrDimensionMismatch, len(embedding), chunk.ID, len(chunk.Embedding))
		}
		results = append(results, entities.QueryResult{
			Chunk:     chunk,
			Score:     cosineSimilarity(embedding, chunk.Embedding),
			SourceDoc: chunk.Source,
		})
	}
	return topResults(results, topK), nil
}

// Delete removes all chunks for a document.
func (s *InMemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(documentID)
	return nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[string]entities.Chunk)
	s.docs = make(map[string][]string)
	return nil
}

// ChunkCount returns the number of stored chunks.
func (s *InMemoryStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}
