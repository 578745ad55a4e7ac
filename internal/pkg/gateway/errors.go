package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers network failures, timeouts and 5xx answers.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is a structured decline from the gateway.
	ErrRejected = errors.New("payment rejected by gateway")
)

// RejectedError carries the gateway's decline code and message.
type RejectedError struct {
	Provider string
	Code     string
	Message  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected payment: %s (%s)", e.Provider, e.Message, e.Code)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// Unavailable wraps cause as ErrUnavailable for provider.
func Unavailable(provider string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", provider, ErrUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", provider, ErrUnavailable, cause)
}

// Rejected builds a RejectedError.
func Rejected(provider, code, message string) error {
	return &RejectedError{Provider: provider, Code: code, Message: message}
}
