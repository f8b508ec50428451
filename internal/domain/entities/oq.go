package entities

import (
	"fmt"
	"time"
)

// TestStep is one numbered action of an OQ test case.
type TestStep struct {
	Number   int    `json:"step" yaml:"step" validate:"gte=1"`
	Action   string `json:"action" yaml:"action" validate:"required"`
	Expected string `json:"expected" yaml:"expected" validate:"required"`
}

// TestCase is a single generated OQ test.
type TestCase struct {
	ID             string     `json:"id" yaml:"id" validate:"oqid"`
	Title          string     `json:"title" yaml:"title" validate:"required"`
	Objective      string     `json:"objective" yaml:"objective" validate:"required"`
	Prerequisites  []string   `json:"prerequisites,omitempty" yaml:"prerequisites"`
	Steps          []TestStep `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
	ExpectedResult string     `json:"expected_result" yaml:"expected_result" validate:"required"`
	RequirementIDs []string   `json:"requirement_ids" yaml:"requirement_ids" validate:"required,min=1,dive,required"`
	Risk           string     `json:"risk" yaml:"risk" validate:"required,oneof=low medium high"`
}

// Validate checks the shape of a single test case.
func (t *TestCase) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("test %q: %w", t.ID, err)
	}
	return nil
}

// Coverage summarizes which requirements the suite traces to.
type Coverage struct {
	Covered   []string `json:"covered" yaml:"covered"`
	Uncovered []string `json:"uncovered" yaml:"uncovered"`
	Ratio     float64  `json:"ratio" yaml:"ratio"`
}

// OQSuite is the generated Operational Qualification test suite.
type OQSuite struct {
	SuiteID      string       `json:"suite_id" yaml:"suite_id"`
	DocumentName string       `json:"document_name" yaml:"document_name"`
	DocumentHash string       `json:"document_hash" yaml:"document_hash"`
	Category     GAMPCategory `json:"gamp_category" yaml:"gamp_category"`
	Tests        []TestCase   `json:"tests" yaml:"tests"`
	Coverage     Coverage     `json:"coverage" yaml:"coverage"`
	Model        string       `json:"model" yaml:"model"`
	GeneratedAt  time.Time    `json:"generated_at" yaml:"generated_at"`
}

// TestIDFor formats the n-th (1-based) OQ test identifier.
func TestIDFor(n int) string {
	return fmt.Sprintf("OQ-%03d", n)
}
