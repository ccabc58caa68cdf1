package dav

import (
	"fmt"
)

// RemoteError is returned for any DAV request that did not succeed,
// either because the server answered with a status of 400 or above or
// because the request never completed. Body holds the raw response text.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dav %s %s: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("dav %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Detail is the text surfaced to API callers.
func (e *RemoteError) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Body == "" {
		return fmt.Sprintf("remote server returned status %d", e.StatusCode)
	}
	return e.Body
}
