package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator with the custom contact form tags registered
func New() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("no_header_injection", NoHeaderInjection)
}

// NoHeaderInjection rejects values that would break out of a mail header line
func NoHeaderInjection(fl validator.FieldLevel) bool {
	return !strings.ContainsAny(fl.Field().String(), "\r\n")
}
