package entities

import (
	"fmt"
	"time"
)

// GAMPCategory is a GAMP-5 software category. Category 2 was retired in GAMP-5,
// so the only valid values are 1, 3, 4 and 5.
type GAMPCategory int

const (
	CategoryInfrastructure GAMPCategory = 1 // Infrastructure software
	CategoryNonConfigured  GAMPCategory = 3 // Non-configured products
	CategoryConfigured     GAMPCategory = 4 // Configured products
	CategoryCustom         GAMPCategory = 5 // Custom applications
)

// Categories lists every valid category in ascending order.
var Categories = []GAMPCategory{
	CategoryInfrastructure,
	CategoryNonConfigured,
	CategoryConfigured,
	CategoryCustom,
}

// Valid reports whether c is one of {1, 3, 4, 5}.
func (c GAMPCategory) Valid() bool {
	switch c {
	case CategoryInfrastructure, CategoryNonConfigured, CategoryConfigured, CategoryCustom:
		return true
	}
	return false
}

func (c GAMPCategory) String() string {
	return fmt.Sprintf("Category %d", int(c))
}

// Categorization is the categorizer agent's verdict for one URS.
type Categorization struct {
	Category      GAMPCategory `json:"category" yaml:"category" validate:"gampcategory"`
	Confidence    float64      `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	Justification string       `json:"justification" yaml:"justification" validate:"required"`
	Model         string       `json:"model" yaml:"-"`
	CategorizedAt time.Time    `json:"categorized_at" yaml:"-"`
}

// Validate checks the categorization invariants.
func (c *Categorization) Validate() error {
	return validate.Struct(c)
}

// CountRange bounds the number of OQ tests generated for a category.
type CountRange struct {
	Min int `json:"min" yaml:"min" validate:"gte=1"`
	Max int `json:"max" yaml:"max" validate:"gtefield=Min"`
}

// Contains reports whether n lies in [Min, Max].
func (r CountRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// DefaultCountRanges are the per-category test counts used when the
// configuration does not override them.
func DefaultCountRanges() map[GAMPCategory]CountRange {
	return map[GAMPCategory]CountRange{
		CategoryInfrastructure: {Min: 3, Max: 5},
		CategoryNonConfigured:  {Min: 5, Max: 10},
		CategoryConfigured:     {Min: 15, Max: 20},
		CategoryCustom:         {Min: 25, Max: 30},
	}
}
