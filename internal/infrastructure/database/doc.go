// Package database provides SQLite connectivity for the wearsync delivery journal.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Applying embedded, versioned schema migrations
//   - Health checks and lifecycle
//
// The journal records delivery outcomes only; pending sends are never
// persisted, so a restart starts with an empty pipeline.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Journal.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
