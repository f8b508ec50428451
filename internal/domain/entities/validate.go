package entities

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var testIDPattern = regexp.MustCompile(`^OQ-\d{3}$`)

// validate is shared by every entity Validate method.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("gampcategory", validateGAMPCategory)
	_ = validate.RegisterValidation("oqid", validateTestID)
}

func validateGAMPCategory(fl validator.FieldLevel) bool {
	return GAMPCategory(fl.Field().Int()).Valid()
}

func validateTestID(fl validator.FieldLevel) bool {
	return testIDPattern.MatchString(fl.Field().String())
}

// ValidateStruct runs the shared validator against any tagged struct.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}
