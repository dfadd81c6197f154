// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/remote/service layers.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidDate indicates a malformed calendar date passed to a
	// date-indexed operation. This is a contract violation, not a soft
	// failure: callers must not treat it as an empty result.
	ErrInvalidDate = errors.New("invalid date")

	// ErrRemoteUnavailable indicates a transport failure or non-success
	// response from the remote service.
	ErrRemoteUnavailable = errors.New("remote unavailable")
)
