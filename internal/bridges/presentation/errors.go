package presentation

import "errors"

// Sentinel errors for the presentation bridge.
var (
	// ErrDisplayRequired is returned by NewBridge without a Display.
	ErrDisplayRequired = errors.New("presentation: display is required")

	// ErrUnknownWidget is returned by Press for an ID not in the widget table.
	ErrUnknownWidget = errors.New("presentation: unknown widget")

	// ErrInputQueueFull is returned by Press when touch input is backed up.
	ErrInputQueueFull = errors.New("presentation: input queue full")
)
