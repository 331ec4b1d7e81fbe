package common

import "errors"

var (
	// ErrInvalidArgument marks malformed identifiers or empty required text,
	// rejected before any I/O happens.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamUnavailable marks a remote boundary failure with no usable
	// fallback.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)
