// Package prediction implements the case outcome widget: local checks on the
// intake form, a debounced call to the prediction model, and the result card.
package prediction

import (
	"math"
	"strings"

	"github.com/wolfman30/despacho-web/internal/legalapi"
)

// Tier buckets a success probability for display.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// CSSClass returns the class of the probability circle.
func (t Tier) CSSClass() string {
	return "probability-" + string(t)
}

// Percent turns a 0..1 fraction into a whole percentage, rounding halves up.
func Percent(fraction float64) int {
	return int(math.Floor(fraction*100 + 0.5))
}

// TierFor classifies a rounded percentage.
func TierFor(percent int) Tier {
	switch {
	case percent >= 70:
		return TierHigh
	case percent >= 40:
		return TierMedium
	default:
		return TierLow
	}
}

// CaseType is one entry of the case type selector.
type CaseType struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// DefaultCaseTypes is used until the model's own list has been loaded.
var DefaultCaseTypes = []CaseType{
	{"civil", "Civil"},
	{"penal", "Penal"},
	{"laboral", "Laboral"},
	{"familia", "Familia"},
	{"comercial", "Comercial"},
}

// Complexities are the accepted complexity levels.
var Complexities = []string{"baja", "media", "alta"}

const defaultComplexity = "media"

// Normalize trims the intake and fills the fields the form leaves implicit:
// the jurisdiction follows the case type and complexity defaults to "media".
func Normalize(in legalapi.CaseIntake) legalapi.CaseIntake {
	in.CaseType = strings.TrimSpace(in.CaseType)
	in.Description = strings.TrimSpace(in.Description)
	in.PriorHistory = strings.TrimSpace(in.PriorHistory)
	in.Complexity = strings.ToLower(strings.TrimSpace(in.Complexity))
	in.Jurisdiction = strings.TrimSpace(in.Jurisdiction)

	if in.Jurisdiction == "" {
		in.Jurisdiction = in.CaseType
	}
	if in.Complexity == "" {
		in.Complexity = defaultComplexity
	}
	if in.DisputedAmount < 0 || math.IsNaN(in.DisputedAmount) || math.IsInf(in.DisputedAmount, 0) {
		in.DisputedAmount = 0
	}

	evidence := make([]string, 0, len(in.Evidence))
	for _, e := range in.Evidence {
		if e = strings.TrimSpace(e); e != "" {
			evidence = append(evidence, e)
		}
	}
	in.Evidence = evidence
	return in
}
