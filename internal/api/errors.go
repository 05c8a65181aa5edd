package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"loadctl/internal/services"
)

// Error describes a non-2xx response from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// errorBody is the union of error shapes the backend returns.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// extractErrorMessage walks detail[0].msg, detail, message and falls back to
// the generic status text.
func extractErrorMessage(status int, body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := detailMessage(parsed.Detail); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(parsed.Message); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("Request failed with status code %d", status)
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		if len(items) > 0 {
			return strings.TrimSpace(items[0].Msg)
		}
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return ""
}

func statusError(op, method, path string, status int, body []byte) error {
	apiErr := &Error{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    extractErrorMessage(status, body),
	}
	marker := services.ErrTransport
	if status == http.StatusNotFound {
		marker = services.ErrNotFound
	}
	return services.Wrap(marker, component, op, apiErr.Message, apiErr)
}

func transportError(op string, err error) error {
	return services.Wrap(services.ErrTransport, component, op, err.Error(), err)
}

func contractError(op, message string, err error) error {
	return services.Wrap(services.ErrContract, component, op, message, err)
}
