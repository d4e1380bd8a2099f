package pbscatalog

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for upstream failures. Callers classify with
// errors.Is; none of these are retried automatically.
var (
	// ErrUpstreamTimeout: the catalog did not answer within the budget.
	ErrUpstreamTimeout = errors.New("pbs catalog timeout")

	// ErrUpstreamUnavailable: the catalog answered with a non-success
	// status.
	ErrUpstreamUnavailable = errors.New("pbs catalog unavailable")

	// ErrUpstreamProtocol: the catalog answered with a payload that
	// does not match the expected shape.
	ErrUpstreamProtocol = errors.New("pbs catalog protocol error")

	// ErrNotFound: the catalog answered correctly with zero matches.
	ErrNotFound = errors.New("not found in pbs catalog")
)

// maxBodySnippet caps how much of an upstream error body is kept for
// diagnostics.
const maxBodySnippet = 512

// UpstreamError carries diagnostics for a failed catalog request and
// unwraps to one of the sentinel kinds above.
type UpstreamError struct {
	Kind     error
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: %s returned status %d: %s", e.Kind, e.Endpoint, e.Status, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Endpoint)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Kind
}

func snippet(body []byte) string {
	if len(body) > maxBodySnippet {
		return string(body[:maxBodySnippet]) + "..."
	}
	return string(body)
}
