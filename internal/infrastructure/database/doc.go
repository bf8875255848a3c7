// Package database provides the SQLite connection used for the audit trail.
//
// Open configures the connection for a single writer with WAL mode and a busy
// timeout, so event handlers writing audit rows from transport goroutines do
// not fail with "database is locked".
//
// Migrations are plain SQL files embedded by the migrations package and
// passed to Migrate as an fs.FS:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns are nullable or carry a default.
package database
