package network

import "errors"

// Sentinel errors for the network bridge.
var (
	// ErrInvalidWaterLevel is returned for a water level payload that is not a decimal integer.
	ErrInvalidWaterLevel = errors.New("network: invalid water level payload")

	// ErrInvalidCommand is returned for a malformed light command.
	ErrInvalidCommand = errors.New("network: invalid light command")

	// ErrNotBound is returned by Start when no controller has been bound.
	ErrNotBound = errors.New("network: controller not bound")

	// ErrSubscribeFailed wraps subscription errors raised during Start.
	ErrSubscribeFailed = errors.New("network: subscribe failed")
)
