package errors

import (
	"errors"
	"fmt"
)

// Common error types for the login and proxy services
var (
	// Authentication errors
	ErrInvalidGrant     = errors.New("invalid grant")
	ErrAmbiguousGrant   = errors.New("exactly one of passcode or apikey must be provided")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidRequest   = errors.New("invalid request")

	// Resource errors
	ErrNotFound   = errors.New("not found")
	ErrNoEndpoint = errors.New("no service endpoint provided")

	// Upstream errors
	ErrUpstream = errors.New("upstream request failed")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
