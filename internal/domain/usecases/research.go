package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// ResearchUseCase gathers regulatory expectations for the assigned category.
type ResearchUseCase struct {
	llm      ports.LLMService
	maxChars int
}

// NewResearchUseCase creates a ResearchUseCase.
func NewResearchUseCase(llm ports.LLMService, maxChars int) *ResearchUseCase {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars / 4
	}
	return &ResearchUseCase{llm: llm, maxChars: maxChars}
}

// Research returns the regulations and practices that shape OQ for this system.
func (uc *ResearchUseCase) Research(
	ctx context.Context,
	doc *entities.Document,
	cat *entities.Categorization,
) (*entities.ResearchFindings, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A pharmaceutical computerized system has been classified as GAMP-5 %s.\n", cat.Category)
	sb.WriteString("List the regulations and guidance (e.g. 21 CFR Part 11, EU Annex 11) and the ")
	sb.WriteString("industry best practices that shape its Operational Qualification.\n\n")
	sb.WriteString("System description excerpt:\n")
	sb.WriteString(truncate(doc.Content, uc.maxChars))
	sb.WriteString("\n\nRespond with a JSON object only: ")
	sb.WriteString(`{"summary": "<text>", "regulations": ["<name>", ...], "best_practices": ["<practice>", ...]}`)

	raw, err := uc.llm.Generate(ctx, entities.CompletionRequest{
		System:      "You are a regulatory research analyst for GxP computerized systems.",
		Prompt:      sb.String(),
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}

	var findings entities.ResearchFindings
	if err := decodeStructured(raw, &findings); err != nil {
		return nil, fmt.Errorf("research: %w", err)
	}
	if err := entities.ValidateStruct(&findings); err != nil {
		return nil, fmt.Errorf("research: %w: %v", ErrMalformedOutput, err)
	}
	return &findings, nil
}
