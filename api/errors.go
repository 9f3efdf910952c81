package api

import (
	"errors"
	"fmt"
)

// RequestError reports a network-level or server-side rejection of a store
// request. Mutation callers use it to roll back optimistic state.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s", e.Status, e.Body)
}

// Temporary reports whether the failure is worth retrying. Only server-side
// errors qualify; 4xx responses are final.
func (e *RequestError) Temporary() bool {
	return e.Status >= 500
}

// IsRequestError reports whether err carries a store rejection and returns it.
func IsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
