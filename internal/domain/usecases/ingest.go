package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// embedBatchSize bounds the texts sent to the embedder in one call.
const embedBatchSize = 32

var (
	markdownSeparators = []string{"\n## ", "\n### ", "\n#### ", "\n\n", "\n", " ", ""}
	defaultSeparators  = []string{"\n\n", "\n", " ", ""}
)

// IngestUseCase loads reference documents (GAMP guides, SOPs, regulations) into the
// knowledge base used by the context provider.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	vectorStore  ports.VectorStore
	chunkSize    int
	chunkOverlap int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	chunkSize, chunkOverlap int,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 10
	}
	return &IngestUseCase{
		embedder:     embedder,
		vectorStore:  vectorStore,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Ingest chunks, embeds and stores a document, replacing any chunks it had before.
// It returns the number of stored chunks.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) (int, error) {
	// 1. Chunk the document
	chunks, err := uc.chunkDocument(doc)
	if err != nil {
		return 0, fmt.Errorf("chunking %s: %w", doc.Name, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	// 2. Generate embeddings via port (adapter), one bounded batch at a time
	for start := 0; start < len(chunks); start += embedBatchSize {
		batch := chunks[start:min(start+embedBatchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding %s: %w", doc.Name, err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("embedding %s: got %d vectors for %d chunks", doc.Name, len(embeddings), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = embeddings[i]
		}
	}

	// 3. Swap the previous version in the vector DB in one step
	if err := uc.vectorStore.Replace(ctx, doc.ID, chunks); err != nil {
		return 0, fmt.Errorf("storing %s: %w", doc.Name, err)
	}
	return len(chunks), nil
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.vectorStore.Delete(ctx, documentID)
}

// Clear empties the knowledge base.
func (uc *IngestUseCase) Clear(ctx context.Context) error {
	return uc.vectorStore.Clear(ctx)
}

// chunkDocument splits document content with a recursive character splitter.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) ([]entities.Chunk, error) {
	content := strings.TrimSpace(doc.Content)
	if len(content) == 0 {
		return nil, nil
	}

	separators := defaultSeparators
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".md", ".markdown":
		separators = markdownSeparators
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(uc.chunkSize),
		textsplitter.WithChunkOverlap(uc.chunkOverlap),
		textsplitter.WithSeparators(separators),
	)

	parts, err := splitter.SplitText(content)
	if err != nil {
		return nil, err
	}

	var chunks []entities.Chunk
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		index := len(chunks)
		chunks = append(chunks, entities.Chunk{
			ID:         generateChunkID(doc.ID, index),
			DocumentID: doc.ID,
			Source:     doc.Name,
			Content:    part,
			Index:      index,
		})
	}
	return chunks, nil
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", docID, index)))
	return hex.EncodeToString(hash[:8])
}
