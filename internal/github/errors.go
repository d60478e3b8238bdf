package github

import (
	"errors"
	"fmt"
)

// Common GitHub API errors.
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized: check the GitHub token")
	// ErrForbidden is returned when authorization fails.
	ErrForbidden = errors.New("forbidden: token may lack the 'contents' write scope")
	// ErrConflict is returned when a write precondition (blob sha) no longer holds.
	ErrConflict = errors.New("conflict: file changed since it was read")
	// ErrMissingToken is returned before any call when no token is configured.
	ErrMissingToken = errors.New("no GitHub token configured")
)

// UpstreamError is any other non-2xx answer from the API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("github API error %d", e.Status)
	}
	return fmt.Sprintf("github API error %d: %s", e.Status, e.Body)
}
