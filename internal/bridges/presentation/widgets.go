package presentation

import (
	"sort"

	"github.com/nerrad567/indicator-core/internal/device"
)

// Widget describes what pressing a panel widget does.
type Widget struct {
	ID   string
	Mode device.LightMode

	// Toggle flips the mode; otherwise the mode is set to On.
	Toggle bool
	On     bool
}

// widgets is the panel's static lookup table.
var widgets = map[string]Widget{
	"bright_switch": {ID: "bright_switch", Mode: device.ModeBright, Toggle: true},
	"relax_switch":  {ID: "relax_switch", Mode: device.ModeRelax, Toggle: true},
	"bright_on":     {ID: "bright_on", Mode: device.ModeBright, On: true},
	"bright_off":    {ID: "bright_off", Mode: device.ModeBright},
	"relax_on":      {ID: "relax_on", Mode: device.ModeRelax, On: true},
	"relax_off":     {ID: "relax_off", Mode: device.ModeRelax},
}

// LookupWidget returns the widget registered under id.
func LookupWidget(id string) (Widget, bool) {
	w, ok := widgets[id]
	return w, ok
}

// WidgetIDs returns every widget ID, sorted.
func WidgetIDs() []string {
	ids := make([]string, 0, len(widgets))
	for id := range widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SwitchWidget returns the toggle widget for m.
func SwitchWidget(m device.LightMode) string {
	return m.String() + "_switch"
}

// SetWidget returns the widget that sets m to on.
func SetWidget(m device.LightMode, on bool) string {
	if on {
		return m.String() + "_on"
	}
	return m.String() + "_off"
}
