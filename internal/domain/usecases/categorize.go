// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// Each agent is a single LLM request/response followed by a parser/validator.
package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

const (
	// DefaultConfidenceThreshold is the categorization confidence below which a run halts.
	DefaultConfidenceThreshold = 0.6

	// DefaultMaxDocumentChars bounds how much URS text is sent in a single prompt.
	DefaultMaxDocumentChars = 24000
)

// CategorizeUseCase assigns a GAMP-5 category to a URS.
type CategorizeUseCase struct {
	llm       ports.LLMService
	threshold float64
	maxChars  int
	now       func() time.Time
}

// NewCategorizeUseCase creates a CategorizeUseCase with injected dependencies.
func NewCategorizeUseCase(llm ports.LLMService, threshold float64, maxChars int) *CategorizeUseCase {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return &CategorizeUseCase{
		llm:       llm,
		threshold: threshold,
		maxChars:  maxChars,
		now:       time.Now,
	}
}

// Categorize asks the LLM for a category and confidence and validates the answer.
// A confidence below the threshold returns *ConsultationRequiredError.
func (uc *CategorizeUseCase) Categorize(ctx context.Context, doc *entities.Document) (*entities.Categorization, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, ErrEmptyDocument
	}

	raw, err := uc.llm.Generate(ctx, entities.CompletionRequest{
		System:      categorizerSystem,
		Prompt:      uc.buildPrompt(doc),
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("categorizing %s: %w", doc.Name, err)
	}

	var cat entities.Categorization
	if err := decodeStructured(raw, &cat); err != nil {
		return nil, fmt.Errorf("categorizing %s: %w", doc.Name, err)
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("categorizing %s: %w: %v", doc.Name, ErrMalformedOutput, err)
	}
	cat.Model = uc.llm.Name()
	cat.CategorizedAt = uc.now().UTC()

	if cat.Confidence < uc.threshold {
		return &cat, &ConsultationRequiredError{Categorization: cat, Threshold: uc.threshold}
	}
	return &cat, nil
}

const categorizerSystem = "You are a GAMP-5 validation specialist. " +
	"You classify computerized systems described in pharmaceutical User Requirements Specifications."

func (uc *CategorizeUseCase) buildPrompt(doc *entities.Document) string {
	var sb strings.Builder
	sb.WriteString("Classify the system described by the URS below into a GAMP-5 software category.\n")
	sb.WriteString("Valid categories: 1 (infrastructure), 3 (non-configured product), ")
	sb.WriteString("4 (configured product), 5 (custom application).\n\n")
	sb.WriteString("Respond with a JSON object only:\n")
	sb.WriteString(`{"category": <1|3|4|5>, "confidence": <0.0-1.0>, "justification": "<reasoning>"}`)
	sb.WriteString("\n\nURS (")
	sb.WriteString(doc.Name)
	sb.WriteString("):\n")
	sb.WriteString(truncate(doc.Content, uc.maxChars))
	return sb.String()
}
