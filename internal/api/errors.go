package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxMessageLength = 300

var statusPrefix = regexp.MustCompile(`^\d{3}:\s*`)

// APIError is returned for any non-2xx response
type APIError struct {
	StatusCode int
	RequestID  string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// RequestID returns the request id carried by err, if any
func RequestID(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RequestID
	}
	return ""
}

// ExtractErrorMessage turns an error into a short human readable message.
// A leading "NNN: " status prefix is stripped, a JSON body's "error" or
// "message" field is preferred, and anything else is cut to 300 characters.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Error()
	}
	msg = statusPrefix.ReplaceAllString(strings.TrimSpace(msg), "")

	var body struct {
		Error   interface{} `json:"error"`
		Message interface{} `json:"message"`
	}
	if json.Unmarshal([]byte(msg), &body) == nil {
		if s, ok := body.Error.(string); ok && s != "" {
			return s
		}
		if s, ok := body.Message.(string); ok && s != "" {
			return s
		}
	}

	return truncate(msg, maxMessageLength)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
