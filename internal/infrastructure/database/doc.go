// Package database provides the SQLite store behind the indicator's state
// history audit trail.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations (see the migrations package)
//   - Connection lifecycle and health checks
//
// History is write-mostly: the telemetry recorder appends a row per state
// change and the API reads recent rows. Nothing is read back at startup;
// the indicator always boots with its default state.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.{up,down}.sql.
package database
