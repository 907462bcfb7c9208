package domain

import (
	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks s against its `validate` struct tags.
// Returns nil if valid, or a validation error describing the constraint violations.
func ValidateStruct(s any) error { return validate.Struct(s) }
