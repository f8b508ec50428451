package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
)

// DefaultBatchSize is how many tests are requested per LLM call.
const DefaultBatchSize = 10

// GenerationInput carries everything the generator needs from earlier steps.
type GenerationInput struct {
	RunID          string
	Document       *entities.Document
	Requirements   []entities.Requirement
	Categorization *entities.Categorization
	Context        *entities.ContextBundle
	Research       *entities.ResearchFindings
	SME            *entities.SMEReview
}

// GenerateUseCase produces the OQ test suite.
type GenerateUseCase struct {
	llm       ports.LLMService
	ranges    map[entities.GAMPCategory]entities.CountRange
	batchSize int
	maxChars  int
	now       func() time.Time
}

// NewGenerateUseCase creates a GenerateUseCase. Missing ranges fall back to the defaults.
func NewGenerateUseCase(
	llm ports.LLMService,
	ranges map[entities.GAMPCategory]entities.CountRange,
	batchSize, maxChars int,
) *GenerateUseCase {
	merged := entities.DefaultCountRanges()
	for c, r := range ranges {
		merged[c] = r
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxDocumentChars
	}
	return &GenerateUseCase{
		llm:       llm,
		ranges:    merged,
		batchSize: batchSize,
		maxChars:  maxChars,
		now:       time.Now,
	}
}

// Range returns the configured test count range for a category.
func (uc *GenerateUseCase) Range(cat entities.GAMPCategory) (entities.CountRange, bool) {
	r, ok := uc.ranges[cat]
	return r, ok
}

// Generate requests tests in batches until the category minimum is reached, then
// checks the final count against the category range.
func (uc *GenerateUseCase) Generate(ctx context.Context, in GenerationInput) (*entities.OQSuite, error) {
	cat := in.Categorization.Category
	rng, ok := uc.Range(cat)
	if !ok {
		return nil, fmt.Errorf("no test count range configured for %s", cat)
	}

	var tests []entities.TestCase
	seen := make(map[string]bool)

	for len(tests) < rng.Min {
		want := rng.Min - len(tests)
		if want > uc.batchSize {
			want = uc.batchSize
		}

		raw, err := uc.llm.Generate(ctx, entities.CompletionRequest{
			System:      generatorSystem,
			Prompt:      uc.buildPrompt(in, rng, len(tests)+1, want, tests),
			Temperature: 0.2,
			JSON:        true,
		})
		if err != nil {
			return nil, fmt.Errorf("generating tests %d-%d: %w", len(tests)+1, len(tests)+want, err)
		}

		batch, err := ParseTestCases(raw)
		if err != nil {
			return nil, fmt.Errorf("generating tests %d-%d: %w", len(tests)+1, len(tests)+want, err)
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("%w: batch returned no tests", ErrMalformedOutput)
		}

		for i := range batch {
			if err := batch[i].Validate(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
			}
			if seen[batch[i].ID] {
				return nil, fmt.Errorf("%w: duplicate test id %s", ErrMalformedOutput, batch[i].ID)
			}
			seen[batch[i].ID] = true
		}
		tests = append(tests, batch...)
	}

	if !rng.Contains(len(tests)) {
		return nil, fmt.Errorf("%w: got %d tests, %s requires %d-%d",
			ErrTestCountOutOfRange, len(tests), cat, rng.Min, rng.Max)
	}

	return &entities.OQSuite{
		SuiteID:      "OQ-SUITE-" + in.RunID,
		DocumentName: in.Document.Name,
		DocumentHash: in.Document.ContentHash,
		Category:     cat,
		Tests:        tests,
		Model:        uc.llm.Name(),
		GeneratedAt:  uc.now().UTC(),
	}, nil
}

// ParseTestCases decodes a generator answer. Both {"tests": [...]} and a bare list are accepted.
func ParseTestCases(raw string) ([]entities.TestCase, error) {
	var wrapped struct {
		Tests []entities.TestCase `json:"tests" yaml:"tests"`
	}
	if err := decodeStructured(raw, &wrapped); err == nil && len(wrapped.Tests) > 0 {
		return wrapped.Tests, nil
	}

	var list []entities.TestCase
	if err := decodeStructured(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

const generatorSystem = "You are an OQ test author for GAMP-5 regulated pharmaceutical systems. " +
	"You write executable, traceable Operational Qualification test cases."

func (uc *GenerateUseCase) buildPrompt(
	in GenerationInput,
	rng entities.CountRange,
	first, count int,
	existing []entities.TestCase,
) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write %d OQ test cases for a GAMP-5 %s system (suite target %d-%d tests).\n",
		count, in.Categorization.Category, rng.Min, rng.Max)
	fmt.Fprintf(&sb, "Use the ids %s to %s in order.\n\n", entities.TestIDFor(first), entities.TestIDFor(first+count-1))

	if len(in.Requirements) > 0 {
		sb.WriteString("Requirements (every test must trace to at least one of these ids):\n")
		for _, r := range in.Requirements {
			fmt.Fprintf(&sb, "- %s: %s\n", r.ID, r.Text)
		}
	} else {
		sb.WriteString("URS:\n")
		sb.WriteString(truncate(in.Document.Content, uc.maxChars))
		sb.WriteString("\n")
	}

	if in.Context != nil && in.Context.Summary != "" {
		sb.WriteString("\nRegulatory context:\n")
		sb.WriteString(in.Context.Summary)
		sb.WriteString("\n")
	}
	if in.Research != nil {
		sb.WriteString("\nApplicable regulations: ")
		sb.WriteString(strings.Join(in.Research.Regulations, "; "))
		sb.WriteString("\n")
	}
	if in.SME != nil && len(in.SME.Risks) > 0 {
		sb.WriteString("\nRisks to cover:\n")
		for _, r := range in.SME.Risks {
			fmt.Fprintf(&sb, "- [%s] %s\n", r.Severity, r.Description)
		}
	}
	if len(existing) > 0 {
		sb.WriteString("\nAlready written (do not repeat):\n")
		for _, t := range existing {
			fmt.Fprintf(&sb, "- %s %s\n", t.ID, t.Title)
		}
	}

	sb.WriteString("\nRespond with a JSON object only:\n")
	sb.WriteString(`{"tests": [{"id": "OQ-001", "title": "", "objective": "", "prerequisites": [""], `)
	sb.WriteString(`"steps": [{"step": 1, "action": "", "expected": ""}], "expected_result": "", `)
	sb.WriteString(`"requirement_ids": ["URS-001"], "risk": "low|medium|high"}]}`)
	return sb.String()
}
