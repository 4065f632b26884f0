package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned before any request is sent when no valid
// bearer token is available.
var ErrUnauthenticated = errors.New("not signed in or session expired")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// Unauthorized reports whether the backend rejected the caller's identity.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Temporary reports whether the status is worth retrying.
func (e *APIError) Temporary() bool {
	return isRetryableStatus(e.Status)
}

// IsUnauthorized reports whether err means the learner must sign in again.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// UserMessage converts err into a short message fit for the error slot.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if IsUnauthorized(err) {
		return "Your session has expired. Please sign in again."
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("Request failed (%d %s)", apiErr.Status, http.StatusText(apiErr.Status))
	}
	return "Network error: " + err.Error()
}

// formatAPIError builds an APIError from a response body shaped like
// {"message": "..."} or {"error": "..."}.
func formatAPIError(method, path string, status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	} else {
		msg = strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
	}
	return &APIError{Method: method, Path: path, Status: status, Message: msg}
}
