package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks cfg against its struct tags (required, oneof, min/max,
// gtfield, required_if), returning every violation joined into one error.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(verrs)
		}
		return err
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msg := "invalid configuration:"
	for _, fe := range verrs {
		msg += fmt.Sprintf("\n  %s: failed %q validation (value: %v)", fe.Namespace(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("%s", msg)
}
