package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// SMEUseCase asks for a subject-matter-expert risk review of the URS.
type SMEUseCase struct {
	llm      ports.LLMService
	maxChars int
}

// NewSMEUseCase creates an SMEUseCase.
func NewSMEUseCase(llm ports.LLMService, maxChars int) *SMEUseCase {
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars / 2
	}
	return &SMEUseCase{llm: llm, maxChars: maxChars}
}

// Review returns risks and recommendations for the OQ of this system.
func (uc *SMEUseCase) Review(
	ctx context.Context,
	doc *entities.Document,
	reqs []entities.Requirement,
	cat *entities.Categorization,
) (*entities.SMEReview, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Review this GAMP-5 %s system as a validation subject-matter expert.\n", cat.Category)
	sb.WriteString("Identify the operational risks OQ testing must address and your recommendations.\n\n")
	if len(reqs) > 0 {
		sb.WriteString("Requirements:\n")
		for _, r := range reqs {
			fmt.Fprintf(&sb, "- %s: %s\n", r.ID, r.Text)
		}
	} else {
		sb.WriteString("URS:\n")
		sb.WriteString(truncate(doc.Content, uc.maxChars))
	}
	sb.WriteString("\nRespond with a JSON object only: ")
	sb.WriteString(`{"summary": "<text>", "risks": [{"description": "<risk>", "severity": "low|medium|high"}], `)
	sb.WriteString(`"recommendations": ["<text>", ...]}`)

	raw, err := uc.llm.Generate(ctx, entities.CompletionRequest{
		System:      "You are a senior computer system validation subject-matter expert.",
		Prompt:      sb.String(),
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("sme review: %w", err)
	}

	var review entities.SMEReview
	if err := decodeStructured(raw, &review); err != nil {
		return nil, fmt.Errorf("sme review: %w", err)
	}
	if err := entities.ValidateStruct(&review); err != nil {
		return nil, fmt.Errorf("sme review: %w: %v", ErrMalformedOutput, err)
	}
	return &review, nil
}
