package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// GenericFailureMessage is surfaced when the backend gives no structured
// detail, e.g. on network errors or malformed error bodies.
const GenericFailureMessage = "Something went wrong. Please try again."

// Error is a structured backend failure: the HTTP status and the backend's
// "detail" message when one was present. StatusCode 0 means the request never
// produced a response (client-side validation or network failure).
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Detail
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
}

// IsUnauthorized reports whether the backend rejected the credentials or
// token outright.
func (e *Error) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Detail extracts the user-facing message from an error returned by the
// client: the backend's structured detail when present, otherwise a generic
// message. The result is suitable for direct display.
func Detail(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return GenericFailureMessage
}

// errorBody matches the backend's error envelope. Detail is usually a plain
// string but validation failures nest structured objects, so decode loosely.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func decodeError(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Detail = detail
		return apiErr
	}

	// Validation errors arrive as a list of {loc, msg, type} objects.
	var validationErrors []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &validationErrors); err == nil && len(validationErrors) > 0 {
		apiErr.Detail = validationErrors[0].Msg
	}
	return apiErr
}
