package types

import (
	"fmt"
)

// FallbackErrorMessage is shown when an upstream failure carries no message.
const FallbackErrorMessage = "Unknown error occurred"

// TransportError covers network failures, non-2xx statuses and malformed
// response bodies. StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("admin api returned %d: %s", e.StatusCode, e.DisplayMessage())
	}
	return e.DisplayMessage()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DisplayMessage is the text surfaced to the operator.
func (e *TransportError) DisplayMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode == 0 && e.Err != nil {
		return e.Err.Error()
	}
	return FallbackErrorMessage
}
