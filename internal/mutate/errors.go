package mutate

import (
	"errors"
	"fmt"

	"propdesk/internal/gateway"
)

// ValidationError reports a payload rejected before any network call.
type ValidationError struct {
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("validation failed: %v", e.Fields)
	}
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError means the entity is already gone on the server (404).
type NotFoundError struct{ ID string }

func (e *NotFoundError) Error() string { return "not found: " + e.ID }

// ForbiddenError means the server refused the operation (403). Not
// retryable.
type ForbiddenError struct{ Msg string }

func (e *ForbiddenError) Error() string {
	if e.Msg != "" {
		return "forbidden: " + e.Msg
	}
	return "forbidden"
}

// ServerError covers 5xx responses. Retryable by the caller.
type ServerError struct {
	Status int
	Msg    string
}

func (e *ServerError) Error() string { return fmt.Sprintf("server error (%d): %s", e.Status, e.Msg) }

// UnknownError is the fallback classification.
type UnknownError struct{ Err error }

func (e *UnknownError) Error() string { return "unknown error: " + e.Err.Error() }

func (e *UnknownError) Unwrap() error { return e.Err }

// classify maps gateway errors into the executor taxonomy. Network errors
// pass through unchanged; they already say everything there is to say.
func classify(err error, id string) error {
	if err == nil {
		return nil
	}
	var ne *gateway.NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	var he *gateway.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Status == 404:
			return &NotFoundError{ID: id}
		case he.Status == 403:
			return &ForbiddenError{Msg: he.Message}
		case he.Status >= 500:
			return &ServerError{Status: he.Status, Msg: he.Message}
		}
	}
	return &UnknownError{Err: err}
}
