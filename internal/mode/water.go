package mode

// WaterStatus classifies a tank level for display and telemetry.
type WaterStatus string

// Water status values.
const (
	WaterNormal   WaterStatus = "normal"
	WaterLow      WaterStatus = "low"
	WaterCritical WaterStatus = "critical"
)

// Thresholds are the alarm levels in percent. A level strictly below
// Critical is critical; strictly below Low is low.
type Thresholds struct {
	Low      int
	Critical int
}

// DefaultThresholds returns the firmware's alarm levels (20% and 10%).
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 20, Critical: 10}
}

// ClassifyWaterLevel returns the status of level under th.
func ClassifyWaterLevel(level int, th Thresholds) WaterStatus {
	switch {
	case level < th.Critical:
		return WaterCritical
	case level < th.Low:
		return WaterLow
	default:
		return WaterNormal
	}
}
