package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrInvalidMode) {
//	    // drop the message
//	}
var (
	// ErrInvalidMode is returned when a mode token is not "bright" or "relax".
	ErrInvalidMode = errors.New("device: invalid light mode")

	// ErrDeviceIDRequired is returned when a history operation has no device ID.
	ErrDeviceIDRequired = errors.New("device: device id is required")
)
