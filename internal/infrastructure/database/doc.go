// Package database provides SQLite connectivity for the gateway.
//
// It manages:
//   - The connection (WAL mode, busy timeout, single writer)
//   - Schema migrations read from an fs.FS (embedded by package migrations)
//   - Health checks and constraint error classification
//
// The bulb records (store.driver "sqlite") and the audit log share one
// database file.
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
