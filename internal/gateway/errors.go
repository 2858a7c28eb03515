package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBody is wrapped by a TransportError when a successful status
// carries a body that is not JSON
var ErrMalformedBody = errors.New("response body is not JSON")

// TransportError means the call did not complete
type TransportError struct {
	Provider Provider
	Method   string
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s [%s]: %v", e.Method, e.Endpoint, e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError means the call completed but the provider rejected it
type ProviderError struct {
	Provider Provider
	Endpoint string
	Status   int
	Message  string
	Payload  json.RawMessage
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s rejected %s (status %d): %s", e.Provider, e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s rejected %s (status %d)", e.Provider, e.Endpoint, e.Status)
}

// errorMessage extracts a human readable message from the provider
// error shapes we know about
func errorMessage(body json.RawMessage) string {
	var probe struct {
		ErrorMessage string          `json:"error_message"`
		Message      string          `json:"message"`
		Errors       json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		var text string
		if json.Unmarshal(body, &text) == nil {
			return text
		}
		return ""
	}
	if probe.ErrorMessage != "" {
		return probe.ErrorMessage
	}

	if len(probe.Errors) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(probe.Errors, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return probe.Message
}

// carriesErrorMessage reports whether a body has a non-empty error_message,
// the aggregator's way of rejecting a call with a 2xx status
func carriesErrorMessage(body json.RawMessage) bool {
	var probe struct {
		ErrorMessage string `json:"error_message"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.ErrorMessage != ""
}
