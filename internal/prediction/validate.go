package prediction

import (
	"unicode/utf8"

	"github.com/wolfman30/despacho-web/internal/legalapi"
)

const minDescriptionLength = 10

const (
	msgRequiredFields   = "Por favor, completa todos los campos requeridos."
	msgShortDescription = "La descripción debe tener al menos 10 caracteres."
)

// ValidationError is a local rejection of the intake form.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate requires a case type and a description of at least ten
// characters.
func Validate(in legalapi.CaseIntake) error {
	if in.CaseType == "" || in.Description == "" {
		return &ValidationError{Message: msgRequiredFields}
	}
	if utf8.RuneCountInString(in.Description) < minDescriptionLength {
		return &ValidationError{Message: msgShortDescription}
	}
	return nil
}
