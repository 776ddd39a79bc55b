package device

import (
	"fmt"
	"strings"
)

// Water level bounds (percent).
const (
	MinWaterLevel = 0
	MaxWaterLevel = 100
)

// LightMode identifies one of the two mutually exclusive lighting presets.
//
// "Off" is not a mode: a mode is off when its flag in State is false, and
// turning one mode off never turns the other on.
type LightMode int

const (
	// ModeBright is the bright lighting preset.
	ModeBright LightMode = iota
	// ModeRelax is the relax lighting preset.
	ModeRelax
)

// LightModes lists every mode in display order.
var LightModes = []LightMode{ModeBright, ModeRelax}

// String returns the wire token for the mode ("bright" or "relax").
func (m LightMode) String() string {
	switch m {
	case ModeBright:
		return "bright"
	case ModeRelax:
		return "relax"
	default:
		return fmt.Sprintf("LightMode(%d)", int(m))
	}
}

// Other returns the mode that is mutually exclusive with m.
func (m LightMode) Other() LightMode {
	if m == ModeBright {
		return ModeRelax
	}
	return ModeBright
}

// Valid reports whether m is one of the declared modes.
func (m LightMode) Valid() bool {
	return m == ModeBright || m == ModeRelax
}

// MarshalText encodes the mode as its wire token.
func (m LightMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a wire token.
func (m *LightMode) UnmarshalText(text []byte) error {
	parsed, err := ParseLightMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseLightMode converts a wire token into a LightMode.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseLightMode(s string) (LightMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bright":
		return ModeBright, nil
	case "relax":
		return ModeRelax, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// State is the authoritative snapshot of the indicator.
//
// BrightOn and RelaxOn are never both true.
type State struct {
	BrightOn   bool `json:"bright_on"`
	RelaxOn    bool `json:"relax_on"`
	WaterLevel int  `json:"water_level"`
}

// NewState returns the power-on state: both modes off and the given
// water level, clamped.
func NewState(defaultWaterLevel int) State {
	return State{WaterLevel: ClampWaterLevel(defaultWaterLevel)}
}

// Mode returns the flag for m.
func (s State) Mode(m LightMode) bool {
	if m == ModeRelax {
		return s.RelaxOn
	}
	return s.BrightOn
}

// WithMode returns a copy of s with m's flag set to on. Turning a mode on
// clears the other mode's flag in the same copy.
func (s State) WithMode(m LightMode, on bool) State {
	switch m {
	case ModeBright:
		s.BrightOn = on
		if on {
			s.RelaxOn = false
		}
	case ModeRelax:
		s.RelaxOn = on
		if on {
			s.BrightOn = false
		}
	}
	return s
}

// WithWaterLevel returns a copy of s with the clamped water level.
func (s State) WithWaterLevel(level int) State {
	s.WaterLevel = ClampWaterLevel(level)
	return s
}

// Valid reports whether s satisfies mutual exclusion and the level range.
func (s State) Valid() bool {
	return !(s.BrightOn && s.RelaxOn) &&
		s.WaterLevel >= MinWaterLevel && s.WaterLevel <= MaxWaterLevel
}

// ClampWaterLevel saturates level to [MinWaterLevel, MaxWaterLevel].
func ClampWaterLevel(level int) int {
	return max(MinWaterLevel, min(MaxWaterLevel, level))
}

// Transition is the before/after pair produced by a single Store.Write.
type Transition struct {
	Prev State
	Next State
}

// Changed reports whether the write altered the state.
func (t Transition) Changed() bool {
	return t.Prev != t.Next
}
