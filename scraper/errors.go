package scraper

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoSession is returned when a retrieval call is made without a session.
var ErrNoSession = errors.New("no portal session")

// AuthenticationError means the portal rejected the supplied credentials.
type AuthenticationError struct {
	Username string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("incorrect username or password for %q", e.Username)
}

// ParseError means a portal response did not have the expected shape.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to parse %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("unable to parse %s", e.What)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RequestError reports a non-success HTTP status from the portal.
type RequestError struct {
	StatusCode int
	Endpoint   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.StatusCode)
}
