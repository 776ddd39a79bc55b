// Package mode implements the indicator's mode controller.
//
// The Controller is the single entry point for changing device state. It
// keeps the two light modes (bright, relax) mutually exclusive, clamps the
// water level, and tells the rest of the system what changed through two
// injected ports:
//
//   - Publisher: the network side, told the new value of the mode that was set
//   - Renderer: the display side, told which indicators to redraw
//
// An optional Observer receives every transition for history and telemetry.
//
// # Signals
//
// SetMode and ToggleMode always publish the requested mode, even when its
// value did not change; downstream consumers may use the repeat as a
// heartbeat. When turning a mode on forces the other one off, the forced
// mode is rendered off before the publish.
//
// Callers whose own widget does not follow the state pass WithEcho, and
// the controller also renders the set mode, between the forced-off render
// and the publish. Because it happens under the same lock as the write, a
// concurrent command can never leave a stale value on the panel.
//
// Neither port may block. The network and presentation bridges queue their
// work and deliver it from their own goroutines.
//
// # Usage
//
//	ctrl, err := mode.New(mode.Deps{
//	    Publisher:         networkBridge,
//	    Renderer:          presentationBridge,
//	    DefaultWaterLevel: cfg.Device.DefaultWaterLevel,
//	})
//	ctrl.ToggleMode(device.ModeBright, mode.WithEcho())
package mode
