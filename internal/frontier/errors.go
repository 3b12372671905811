package frontier

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateURL signals a merge call that reports the same URL twice.
	ErrDuplicateURL = errors.New("duplicate url in reports")
	// ErrInvalidReport signals a report that cannot be merged.
	ErrInvalidReport = errors.New("invalid url report")
	// ErrEmptyUser signals a lease request without a requester.
	ErrEmptyUser = errors.New("user id hash is required")
	// ErrNotFound signals that the requested URL has no record.
	ErrNotFound = errors.New("url record not found")
)

// ValidationError is a caller bug detected before any state was touched.
type ValidationError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s (%s)", e.Err, e.Reason, e.URL)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was caused by invalid caller input.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
