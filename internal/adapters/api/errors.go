package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxPlainMessage = 200

// ErrUnauthorized matches any *Error carrying a 401
var ErrUnauthorized = errors.New("api: unauthorized")

// FieldError is a validation message reported by the backend
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error is a non-2xx response from the SACCO API
type Error struct {
	StatusCode int
	Message    string
	Errors     []FieldError
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// StatusCode extracts the HTTP status of an API error, or 0
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorBody covers the shapes the backend uses for failures
type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Errors  json.RawMessage `json:"errors"`
}

func decodeError(status int, body []byte) *Error {
	apiErr := &Error{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
		apiErr.Message = truncate(apiErr.Message, maxPlainMessage)
		return apiErr
	}

	apiErr.Message = eb.Message
	if apiErr.Message == "" {
		apiErr.Message = eb.Error
	}
	apiErr.Errors = decodeFieldErrors(eb.Errors)
	return apiErr
}

func decodeFieldErrors(raw json.RawMessage) []FieldError {
	if len(raw) == 0 {
		return nil
	}

	var objects []struct {
		Field   string `json:"field"`
		Path    string `json:"path"`
		Param   string `json:"param"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		out := make([]FieldError, 0, len(objects))
		for _, o := range objects {
			fe := FieldError{Field: o.Field, Message: o.Message}
			if fe.Field == "" {
				fe.Field = o.Path
			}
			if fe.Field == "" {
				fe.Field = o.Param
			}
			if fe.Message == "" {
				fe.Message = o.Msg
			}
			out = append(out, fe)
		}
		return out
	}

	var messages []string
	if err := json.Unmarshal(raw, &messages); err == nil {
		out := make([]FieldError, 0, len(messages))
		for _, m := range messages {
			out = append(out, FieldError{Message: m})
		}
		return out
	}

	var byField map[string]string
	if err := json.Unmarshal(raw, &byField); err == nil {
		out := make([]FieldError, 0, len(byField))
		for field, m := range byField {
			out = append(out, FieldError{Field: field, Message: m})
		}
		return out
	}

	return nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
