// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases and the workflow depend on these
// abstractions, not on concrete LLM SDKs, databases or file formats.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

// LLMService generates text responses from a language model.
type LLMService interface {
	// Generate sends a single completion request and returns the raw text answer.
	Generate(ctx context.Context, req entities.CompletionRequest) (string, error)

	// Name identifies the provider and model, e.g. "openai:gpt-4o-mini".
	Name() string
}

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists and queries document embeddings.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search finds the most similar chunks to a query embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Replace atomically swaps all chunks of a document for the given ones.
	// On error the previous chunks are left in place.
	Replace(ctx context.Context, documentID string, chunks []entities.Chunk) error

	// Delete removes all chunks for a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error
}

// DocumentLoader reads and parses documents from disk.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// AuditLog records who did what during a run. Implementations must be append-only.
type AuditLog interface {
	Append(ctx context.Context, rec entities.AuditRecord) error
}

// ArtifactWriter persists the outputs of a successful run and returns the written paths.
type ArtifactWriter interface {
	Write(ctx context.Context, result *entities.RunResult) ([]string, error)
}

// RunStore keeps the history of pipeline runs.
type RunStore interface {
	Save(ctx context.Context, rec entities.RunRecord) error
	List(ctx context.Context, limit int) ([]entities.RunRecord, error)
}

// Metrics receives pipeline observations.
type Metrics interface {
	ObserveStep(step string, d time.Duration, err error)
	ObserveRun(status entities.RunStatus, tests int)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}
