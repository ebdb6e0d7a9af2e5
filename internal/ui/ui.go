// Package ui holds the presentation primitives shared by the widgets
// (alerts, toasts, select options) and renders them into HTML fragments the
// page swaps into place.
package ui

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

// AlertType selects the alert styling.
type AlertType string

const (
	AlertSuccess AlertType = "success"
	AlertError   AlertType = "error"
	AlertWarning AlertType = "warning"
	AlertInfo    AlertType = "info"
)

// AlertAutoDismiss is how long an alert stays on screen.
const AlertAutoDismiss = 10 * time.Second

// Alert is a page-level message shown above the appointment form. Only one
// alert is visible at a time; a new one replaces the previous.
type Alert struct {
	Type           AlertType     `json:"type"`
	Message        string        `json:"message"`
	CSSClass       string        `json:"css_class"`
	Icon           string        `json:"icon"`
	DismissAfterMS int64         `json:"dismiss_after_ms"`
	HTML           template.HTML `json:"html"`
}

// NewAlert builds an alert and renders its fragment.
func NewAlert(t AlertType, message string) *Alert {
	if t == "" {
		t = AlertInfo
	}
	a := &Alert{
		Type:           t,
		Message:        message,
		CSSClass:       AlertClass(t),
		Icon:           AlertIcon(t),
		DismissAfterMS: AlertAutoDismiss.Milliseconds(),
	}
	a.HTML = render("alert", a)
	return a
}

// AlertClass maps an alert type to its Bootstrap class; errors use "danger".
func AlertClass(t AlertType) string {
	if t == AlertError {
		return "alert-danger"
	}
	return "alert-" + string(t)
}

// AlertIcon returns the Font Awesome icon name for an alert type.
func AlertIcon(t AlertType) string {
	switch t {
	case AlertSuccess:
		return "check-circle"
	case AlertError, "danger":
		return "exclamation-triangle"
	case AlertWarning:
		return "exclamation-circle"
	default:
		return "info-circle"
	}
}

// Toast is a dismissible notification used by the prediction widget.
type Toast struct {
	Message     string        `json:"message"`
	Dismissible bool          `json:"dismissible"`
	HTML        template.HTML `json:"html"`
}

// NewErrorToast builds a dismissible error toast.
func NewErrorToast(message string) *Toast {
	t := &Toast{Message: message, Dismissible: true}
	t.HTML = render("toast", t)
	return t
}

// Option is one entry of a select control.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// RenderOptions renders a list of <option> elements.
func RenderOptions(opts []Option) template.HTML {
	return render("options", opts)
}

// RenderList renders items as icon rows with the given class. An empty list
// renders the "nothing to show" placeholder.
func RenderList(items []string, class string) template.HTML {
	return render("list", struct {
		Items []string
		Class string
	}{Items: items, Class: class})
}

// Render executes one of the package templates with data. Exported for the
// widget packages that define their own fragments on top of the base set.
func Render(name string, data any) template.HTML {
	return render(name, data)
}

func render(name string, data any) template.HTML {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are parsed at init; an execution error means a
		// programming mistake in the data passed in.
		return template.HTML("<!-- render " + template.HTMLEscapeString(name) + ": " + template.HTMLEscapeString(err.Error()) + " -->")
	}
	return template.HTML(strings.TrimSpace(buf.String()))
}

// nl2br escapes s and turns newlines into <br>.
func nl2br(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
