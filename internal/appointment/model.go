// Package appointment implements the booking widget: slot lookup for a
// date, local validation of the booking form, and submission upstream.
package appointment

import (
	"strings"

	"github.com/wolfman30/despacho-web/internal/legalapi"
)

// Form is the booking form as posted by the page. Date and Time arrive from
// separate controls and are combined into the upstream "YYYY-MM-DD HH:MM".
type Form struct {
	Name        string `json:"nombre"`
	Email       string `json:"email"`
	Phone       string `json:"telefono"`
	Date        string `json:"fecha"`
	Time        string `json:"hora"`
	ServiceType string `json:"tipo_servicio"`
	Description string `json:"descripcion"`
}

// Request trims the form fields and builds the upstream request.
func (f Form) Request() legalapi.AppointmentRequest {
	date := strings.TrimSpace(f.Date)
	clock := strings.TrimSpace(f.Time)
	combined := ""
	if date != "" && clock != "" {
		combined = date + " " + clock
	}
	return legalapi.AppointmentRequest{
		Name:        strings.TrimSpace(f.Name),
		Email:       strings.TrimSpace(f.Email),
		Phone:       strings.TrimSpace(f.Phone),
		Date:        combined,
		ServiceType: strings.TrimSpace(f.ServiceType),
		Description: strings.TrimSpace(f.Description),
	}
}

type service struct {
	Code string
	Name string
}

// services is the catalogue offered in the booking form, in display order.
var services = []service{
	{"civil", "Derecho Civil"},
	{"penal", "Derecho Penal"},
	{"laboral", "Derecho Laboral"},
	{"familiar", "Derecho Familiar"},
	{"mercantil", "Derecho Mercantil"},
	{"inmobiliario", "Derecho Inmobiliario"},
	{"accidentes", "Accidentes Viales"},
	{"urgente", "Caso Urgente (24h)"},
}

// ServiceName returns the display name for a service code. Unknown codes are
// returned unchanged.
func ServiceName(code string) string {
	for _, s := range services {
		if s.Code == code {
			return s.Name
		}
	}
	return code
}

// ServiceCodes lists the bookable service codes in display order.
func ServiceCodes() []string {
	codes := make([]string, len(services))
	for i, s := range services {
		codes[i] = s.Code
	}
	return codes
}

// ResolveService maps a service code or display name (as the chat suggests
// it) to a known code.
func ResolveService(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, s := range services {
		if strings.EqualFold(s.Code, value) || strings.EqualFold(s.Name, value) {
			return s.Code, true
		}
	}
	return "", false
}
