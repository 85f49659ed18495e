package model

import (
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a result record against its struct tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return eris.Wrap(err, "model: validate")
	}
	return nil
}
