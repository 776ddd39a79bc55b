package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupStateHistoryTestDB creates an in-memory SQLite database with the state_history table.
func setupStateHistoryTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// Every pooled connection would get its own :memory: database.
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			state TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL
		) STRICT;
		CREATE INDEX idx_state_history_device ON state_history(device_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// insertStateHistoryRow inserts a state history row with a specific timestamp.
func insertStateHistoryRow(t *testing.T, db *sql.DB, deviceID, stateJSON, source string, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(
		"INSERT INTO state_history (device_id, state, source, created_at) VALUES (?, ?, ?, ?)",
		deviceID,
		stateJSON,
		source,
		createdAt.UTC().Format(historyTimeFormat),
	)
	if err != nil {
		t.Fatalf("failed to insert state history row: %v", err)
	}
}

func TestRecordStateChange(t *testing.T) {
	db := setupStateHistoryTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	state := State{BrightOn: true, WaterLevel: 75}
	if err := repo.RecordStateChange(ctx, "ind-1", state, StateHistorySourceToggleMode); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}

	entries, err := repo.GetHistory(ctx, "ind-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries length = %d, want 1", len(entries))
	}

	entry := entries[0]
	if entry.DeviceID != "ind-1" {
		t.Errorf("DeviceID = %q, want %q", entry.DeviceID, "ind-1")
	}
	if entry.Source != StateHistorySourceToggleMode {
		t.Errorf("Source = %q, want %q", entry.Source, StateHistorySourceToggleMode)
	}
	if entry.State != state {
		t.Errorf("State = %+v, want %+v", entry.State, state)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestRecordStateChange_Validation(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupStateHistoryTestDB(t))

	err := repo.RecordStateChange(context.Background(), "", State{}, "")
	if !errors.Is(err, ErrDeviceIDRequired) {
		t.Errorf("error = %v, want ErrDeviceIDRequired", err)
	}
}

func TestRecordStateChange_DefaultSource(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupStateHistoryTestDB(t))
	ctx := context.Background()

	if err := repo.RecordStateChange(ctx, "ind-1", State{}, ""); err != nil {
		t.Fatalf("RecordStateChange() error = %v", err)
	}
	entries, err := repo.GetHistory(ctx, "ind-1", 0)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Source != StateHistorySourceSetMode {
		t.Errorf("entries = %+v, want one set_mode entry", entries)
	}
}

func TestGetHistory_OrderAndLimit(t *testing.T) {
	db := setupStateHistoryTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := range 5 {
		insertStateHistoryRow(t, db, "ind-1",
			fmt.Sprintf(`{"bright_on":false,"relax_on":false,"water_level":%d}`, i),
			StateHistorySourceWaterLevel, base.Add(time.Duration(i)*time.Minute))
	}
	insertStateHistoryRow(t, db, "other", `{}`, StateHistorySourceSetMode, base)

	entries, err := repo.GetHistory(ctx, "ind-1", 3)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries length = %d, want 3", len(entries))
	}
	for i, want := range []int{4, 3, 2} {
		if entries[i].State.WaterLevel != want {
			t.Errorf("entries[%d].WaterLevel = %d, want %d", i, entries[i].State.WaterLevel, want)
		}
	}
}

func TestGetHistory_SameTimestampNewestFirst(t *testing.T) {
	db := setupStateHistoryTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)

	at := time.Now()
	insertStateHistoryRow(t, db, "ind-1", `{"water_level":1}`, StateHistorySourceWaterLevel, at)
	insertStateHistoryRow(t, db, "ind-1", `{"water_level":2}`, StateHistorySourceWaterLevel, at)

	entries, err := repo.GetHistory(context.Background(), "ind-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 2 || entries[0].State.WaterLevel != 2 {
		t.Errorf("entries = %+v, want later insert first", entries)
	}
}

func TestGetHistory_EmptyDeviceID(t *testing.T) {
	repo := NewSQLiteStateHistoryRepository(setupStateHistoryTestDB(t))

	if _, err := repo.GetHistory(context.Background(), "", 10); !errors.Is(err, ErrDeviceIDRequired) {
		t.Errorf("error = %v, want ErrDeviceIDRequired", err)
	}
}

func TestPruneHistory(t *testing.T) {
	db := setupStateHistoryTestDB(t)
	repo := NewSQLiteStateHistoryRepository(db)
	ctx := context.Background()

	insertStateHistoryRow(t, db, "ind-1", `{}`, StateHistorySourceSetMode, time.Now().Add(-48*time.Hour))
	insertStateHistoryRow(t, db, "ind-1", `{}`, StateHistorySourceSetMode, time.Now().Add(-time.Minute))

	deleted, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := repo.GetHistory(ctx, "ind-1", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("remaining = %d, want 1", len(entries))
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) should fail")
	}
}

func TestParseHistoryTimestamp(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"2026-10-19T12:00:00.123456789Z", false},
		{"2026-10-19T12:00:00Z", false},
		{"", true},
		{"yesterday", true},
	}
	for _, tt := range tests {
		_, err := parseHistoryTimestamp(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHistoryTimestamp(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}
