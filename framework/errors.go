package framework

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// APIError is returned by provider clients for non-2xx responses so callers
// can branch on the status code instead of scraping message text.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s error: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s error: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ErrorKind classifies a failure for recovery purposes.
type ErrorKind int

const (
	// ErrorOther covers failures with no special recovery path.
	ErrorOther ErrorKind = iota
	// ErrorCapacity means the provider reported it is out of capacity; the
	// caller should invalidate the cached agent and fall back next time.
	ErrorCapacity
	// ErrorRateLimit means the provider asked us to slow down; the cached
	// agent stays valid.
	ErrorRateLimit
	// ErrorInterrupted means the user cancelled the in-flight question.
	ErrorInterrupted
)

// Classify maps an error onto an ErrorKind. Structured status codes from
// APIError take precedence; substring matching on the message is kept only
// as a fallback for providers that surface bare text.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorOther
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorInterrupted
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 502, 503, 529:
			return ErrorCapacity
		case 429:
			return ErrorRateLimit
		}
		return ErrorOther
	}
	msg := err.Error()
	if strings.Contains(msg, "503") {
		return ErrorCapacity
	}
	if strings.Contains(msg, "429") {
		return ErrorRateLimit
	}
	return ErrorOther
}
