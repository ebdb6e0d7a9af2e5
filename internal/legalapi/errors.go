package legalapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxErrorBody = 300

// APIError is returned when the upstream answers with a non-2xx status.
type APIError struct {
	Endpoint   string
	StatusCode int
	// Detail is the FastAPI "detail" message when the body carried one,
	// otherwise a truncated copy of the raw body.
	Detail string

	userDetail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("legalapi: %s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("legalapi: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Detail)
}

// UserMessage returns the upstream detail when it is a plain sentence meant
// for the visitor, or "" when it is not.
func (e *APIError) UserMessage() string {
	if e == nil {
		return ""
	}
	return e.userDetail
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// NewAPIError decodes a non-2xx response body into an *APIError.
func NewAPIError(endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{Endpoint: endpoint, StatusCode: status}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			apiErr.Detail = s
			apiErr.userDetail = s
			return apiErr
		}
		apiErr.Detail = truncate(string(payload.Detail))
		return apiErr
	}
	apiErr.Detail = truncate(strings.TrimSpace(string(body)))
	return apiErr
}

// truncate caps s at maxErrorBody bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	cut := maxErrorBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
