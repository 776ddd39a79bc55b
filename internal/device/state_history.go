package device

import (
	"context"
	"time"
)

// State history source values: the controller operation that produced the change.
const (
	StateHistorySourceSetMode    = "set_mode"
	StateHistorySourceToggleMode = "toggle_mode"
	StateHistorySourceWaterLevel = "water_level"
)

// StateHistoryEntry represents a single recorded state change.
//
// Each entry stores a full snapshot of the indicator state after the change.
// History is an audit trail only; it is never used to restore state at start.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the configured identifier of the indicator.
	DeviceID string `json:"device_id"`

	// State is the snapshot after the change.
	State State `json:"state"`

	// Source identifies the operation that produced the change.
	Source string `json:"source"`

	// CreatedAt is the timestamp of the state change (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves state change history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordStateChange records a state change.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Indicator identifier
	//   - state: State snapshot to persist
	//   - source: Operation that produced the change
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordStateChange(ctx context.Context, deviceID string, state State, source string) error

	// GetHistory returns recent state change history, newest first.
	// Implementations clamp limit to their own bounds.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)

	// PruneHistory deletes entries older than olderThan and returns the count removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
