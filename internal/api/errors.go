package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork matches any transport-level failure.
	ErrNetwork = errors.New("network failure")
	// ErrRejected matches any response with status >= 400.
	ErrRejected = errors.New("request rejected")
)

// NetworkError is returned when the backend could not be reached or the
// connection failed before a response was read.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// RequestError is returned when the backend answered with an error status.
type RequestError struct {
	Op         string
	StatusCode int
	// Message is the backend's "message" field, if any.
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRejected
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == http.StatusUnauthorized
}

// UserMessage picks the text to show for err: the backend's message when it
// sent one, a connectivity hint for network failures, fallback otherwise.
func UserMessage(err error, fallback string) string {
	var re *RequestError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	if errors.Is(err, ErrNetwork) {
		return fallback + " (server unreachable)"
	}
	return fallback
}
