package usecases

import (
	"errors"
	"fmt"

	"github.com/0xcro3dile/oqgen/internal/domain/entities"
)

var (
	// ErrEmptyDocument is returned when a URS has no usable text.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrMalformedOutput is returned when an LLM answer cannot be decoded or fails validation.
	ErrMalformedOutput = errors.New("malformed LLM output")

	// ErrTestCountOutOfRange is returned when the generated suite size is outside the category range.
	ErrTestCountOutOfRange = errors.New("generated test count out of range")

	// ErrUnknownRequirement is returned when a test traces to a requirement the URS does not define.
	ErrUnknownRequirement = errors.New("test references unknown requirement")
)

// ConsultationRequiredError halts a run whose categorization confidence is below the
// configured threshold. A human has to confirm the category before tests are generated.
type ConsultationRequiredError struct {
	Categorization entities.Categorization
	Threshold      float64
}

func (e *ConsultationRequiredError) Error() string {
	return fmt.Sprintf("human consultation required: %s with confidence %.2f is below threshold %.2f",
		e.Categorization.Category, e.Categorization.Confidence, e.Threshold)
}
