// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no knowledge of
// LLM providers, storage or transport.
package entities

import "time"

// Document represents a source document (URS or knowledge-base reference).
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Content     string    `json:"-"`
	ContentHash string    `json:"content_hash"` // sha256 of Content, hex encoded
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chunk represents a piece of a knowledge-base document for embedding.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Source     string    `json:"source"` // Document name for citation
	Content    string    `json:"content"`
	Index      int       `json:"index"`     // Position in document
	Embedding  []float32 `json:"-"`         // Vector representation (populated by adapter)
}

// QueryResult represents a search result with relevance.
type QueryResult struct {
	Chunk     Chunk   `json:"chunk"`
	Score     float64 `json:"score"` // Cosine similarity
	SourceDoc string  `json:"source_doc"`
}

// Requirement is a single numbered requirement lifted from a URS.
type Requirement struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// CompletionRequest is a single prompt sent to an LLM provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	JSON        bool // Ask the provider for a JSON object response when supported
}

// ContextBundle is the output of the context provider agent.
type ContextBundle struct {
	Query    string        `json:"query"`
	Passages []QueryResult `json:"passages"`
	Summary  string        `json:"summary" yaml:"summary"`
	Focus    []string      `json:"focus_areas" yaml:"focus_areas"`
}

// ResearchFindings is the output of the research agent.
type ResearchFindings struct {
	Summary       string   `json:"summary" yaml:"summary" validate:"required"`
	Regulations   []string `json:"regulations" yaml:"regulations"`
	BestPractices []string `json:"best_practices" yaml:"best_practices"`
}

// Risk is a single risk raised by the SME agent.
type Risk struct {
	Description string `json:"description" yaml:"description" validate:"required"`
	Severity    string `json:"severity" yaml:"severity" validate:"required,oneof=low medium high"`
}

// SMEReview is the output of the subject-matter-expert agent.
type SMEReview struct {
	Summary         string   `json:"summary" yaml:"summary" validate:"required"`
	Risks           []Risk   `json:"risks" yaml:"risks" validate:"dive"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
}

// AuditRecord is one entry of the hash-chained audit log.
type AuditRecord struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	RunID     string         `json:"run_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunSucceeded            RunStatus = "succeeded"
	RunFailed               RunStatus = "failed"
	RunConsultationRequired RunStatus = "consultation_required"
)

// RunRecord is the history row written for every pipeline run.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	DocumentName string    `json:"document_name"`
	DocumentHash string    `json:"document_hash"`
	Category     int       `json:"category,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	TestCount    int       `json:"test_count"`
	Status       RunStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	OutputDir    string    `json:"output_dir,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RunResult is everything a successful run produced.
type RunResult struct {
	RunID          string            `json:"run_id"`
	Document       *Document         `json:"document"`
	Requirements   []Requirement     `json:"requirements"`
	Categorization *Categorization   `json:"categorization"`
	Context        *ContextBundle    `json:"context"`
	Research       *ResearchFindings `json:"research"`
	SME            *SMEReview        `json:"sme"`
	Suite          *OQSuite          `json:"suite"`
	Artifacts      []string          `json:"artifacts,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}
