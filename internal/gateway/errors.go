package gateway

import "fmt"

// NetworkError wraps transport-level failures: no connectivity, DNS,
// or a request timeout. The caller may retry.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError carries a non-2xx response. Message is extracted from the
// body's "message" field when the backend supplies one.
type HTTPError struct {
	Status  int
	Body    string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}
