package goofish

import "errors"

var (
	// ErrSessionExpired means the captured browsing session is no longer
	// accepted upstream. Fatal for the run: everything processed so far is
	// already flushed, but no further pages can be fetched.
	ErrSessionExpired = errors.New("goofish session expired")

	// ErrFetchTimeout means a page interaction produced no matching search
	// response within the window. Retried once, then the page is skipped.
	ErrFetchTimeout = errors.New("timed out waiting for search response")

	// ErrUpstreamParse means a captured payload did not have the expected
	// shape. The page is skipped; the run continues.
	ErrUpstreamParse = errors.New("malformed upstream payload")
)
