package discovery

import "errors"

var (
	// ErrInvalidConfig is returned when the advertisement cannot be built.
	ErrInvalidConfig = errors.New("discovery: invalid config")

	// ErrAlreadyStarted is returned by Start on a running advertiser.
	ErrAlreadyStarted = errors.New("discovery: already started")
)
