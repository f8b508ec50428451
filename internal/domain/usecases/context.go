package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// maxQueryRequirements bounds how many requirement texts feed the retrieval query.
const maxQueryRequirements = 10

// ContextUseCase retrieves regulatory context from the knowledge base.
type ContextUseCase struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	llm         ports.LLMService
	topK        int
}

// NewContextUseCase creates a ContextUseCase with injected dependencies.
func NewContextUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	llm ports.LLMService,
	topK int,
) *ContextUseCase {
	if topK <= 0 {
		topK = 5
	}
	return &ContextUseCase{
		embedder:    embedder,
		vectorStore: vectorStore,
		llm:         llm,
		topK:        topK,
	}
}

type contextAnswer struct {
	Summary string   `json:"summary" yaml:"summary"`
	Focus   []string `json:"focus_areas" yaml:"focus_areas"`
}

// Retrieve searches the knowledge base and summarizes the passages for OQ planning.
// An empty knowledge base yields an empty bundle without an LLM call.
func (uc *ContextUseCase) Retrieve(
	ctx context.Context,
	doc *entities.Document,
	reqs []entities.Requirement,
	cat *entities.Categorization,
) (*entities.ContextBundle, error) {
	query := buildRetrievalQuery(doc, reqs, cat)

	// 1. Embed the query
	queryEmbedding, err := uc.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// 2. Search vector store
	results, err := uc.vectorStore.Search(ctx, queryEmbedding, uc.topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	bundle := &entities.ContextBundle{Query: query, Passages: results}
	if len(results) == 0 {
		return bundle, nil
	}

	// 3. Build context from results
	contextParts := make([]string, len(results))
	for i, r := range results {
		contextParts[i] = fmt.Sprintf("[Source: %s]\n%s", r.SourceDoc, r.Chunk.Content)
	}

	// 4. Summarize via LLM
	raw, err := uc.llm.Generate(ctx, entities.CompletionRequest{
		System:      "You are a pharmaceutical computer system validation consultant.",
		Prompt:      buildContextPrompt(cat, contextParts),
		Temperature: 0.1,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("summarizing context: %w", err)
	}

	var answer contextAnswer
	if err := decodeStructured(raw, &answer); err != nil {
		return nil, fmt.Errorf("summarizing context: %w", err)
	}
	if strings.TrimSpace(answer.Summary) == "" {
		return nil, fmt.Errorf("summarizing context: %w: missing summary", ErrMalformedOutput)
	}
	bundle.Summary = answer.Summary
	bundle.Focus = answer.Focus
	return bundle, nil
}

// buildRetrievalQuery combines the category with the leading requirement texts.
func buildRetrievalQuery(doc *entities.Document, reqs []entities.Requirement, cat *entities.Categorization) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GAMP-5 %s operational qualification testing. ", cat.Category)
	if len(reqs) == 0 {
		sb.WriteString(truncate(doc.Content, 500))
		return sb.String()
	}
	for i, r := range reqs {
		if i >= maxQueryRequirements {
			break
		}
		sb.WriteString(r.Text)
		sb.WriteString(" ")
	}
	return strings.TrimSpace(sb.String())
}

func buildContextPrompt(cat *entities.Categorization, context []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The system under validation is GAMP-5 %s.\n", cat.Category)
	sb.WriteString("Summarize the guidance below that matters for planning its OQ tests.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(strings.Join(context, "\n\n"))
	sb.WriteString("\n\nRespond with a JSON object only: ")
	sb.WriteString(`{"summary": "<text>", "focus_areas": ["<area>", ...]}`)
	return sb.String()
}
