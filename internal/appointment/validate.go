package appointment

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/despacho-web/internal/legalapi"
)

const (
	minNameLength  = 2
	minPhoneLength = 10

	// RequestLayout is the upstream format of the combined date and time.
	RequestLayout = "2006-01-02 15:04"
	// DateLayout is the format of the date control.
	DateLayout = "2006-01-02"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail applies the booking form's email check.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidationError aggregates every problem found in a booking form.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "Por favor corrija los siguientes errores:\n• " + strings.Join(e.Messages, "\n• ")
}

// Validate checks a request locally. now and loc decide whether the
// requested slot lies in the future.
func Validate(req legalapi.AppointmentRequest, now time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	var msgs []string

	if utf8.RuneCountInString(req.Name) < minNameLength {
		msgs = append(msgs, "El nombre debe tener al menos 2 caracteres")
	}
	if req.Email == "" || !IsValidEmail(req.Email) {
		msgs = append(msgs, "Debe proporcionar un email válido")
	}
	if utf8.RuneCountInString(req.Phone) < minPhoneLength {
		msgs = append(msgs, "Debe proporcionar un teléfono válido")
	}
	if req.Date == "" {
		msgs = append(msgs, "Debe seleccionar una fecha y hora")
	} else if at, err := time.ParseInLocation(RequestLayout, req.Date, loc); err != nil {
		msgs = append(msgs, "Debe seleccionar una fecha y hora")
	} else if !at.After(now) {
		msgs = append(msgs, "La fecha debe ser futura")
	}
	if req.ServiceType == "" {
		msgs = append(msgs, "Debe seleccionar un tipo de servicio")
	}

	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}
