package presentation

import (
	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/mode"
)

// CommandKind identifies what a RenderCommand redraws.
type CommandKind string

const (
	// KindMode redraws a light mode switch.
	KindMode CommandKind = "mode"

	// KindWater redraws the water level indicator.
	KindWater CommandKind = "water"
)

// RenderCommand is one queued redraw request.
type RenderCommand struct {
	Kind CommandKind

	// Mode and On are set for KindMode.
	Mode device.LightMode
	On   bool

	// Level and Status are set for KindWater.
	Level  int
	Status mode.WaterStatus
}

// Display draws render commands on a physical or remote panel.
//
// Render is called only from the poll/render loop goroutine. An error is
// treated as a permanent display failure.
type Display interface {
	Render(cmd RenderCommand) error
}

// LogDisplay is a Display that logs each command. It is used when no panel
// surface is configured, e.g. on a headless bench.
type LogDisplay struct {
	logger Logger
}

// NewLogDisplay creates a LogDisplay writing to logger.
func NewLogDisplay(logger Logger) *LogDisplay {
	return &LogDisplay{logger: logger}
}

// Render logs cmd at debug level.
func (d *LogDisplay) Render(cmd RenderCommand) error {
	if d.logger == nil {
		return nil
	}
	switch cmd.Kind {
	case KindMode:
		d.logger.Debug("render mode", "mode", cmd.Mode.String(), "on", cmd.On)
	case KindWater:
		d.logger.Debug("render water level", "level", cmd.Level, "status", string(cmd.Status))
	}
	return nil
}
