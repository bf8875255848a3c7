package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_widgets.up.sql": {Data: []byte(
			`CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT NOT NULL);`)},
		"20260101_000000_widgets.down.sql": {Data: []byte(
			`DROP TABLE widgets;`)},
		"20260102_000000_widget_colour.up.sql": {Data: []byte(
			`ALTER TABLE widgets ADD COLUMN colour TEXT;`)},
		"README.md":        {Data: []byte("not a migration")},
		"20260103_bad.sql": {Data: []byte("SELECT 1;")},
		"orphan.down.sql":  {Data: []byte("SELECT 1;")},
		"nested/x.up.sql":  {Data: []byte("SELECT 1;")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("sqlite_master query error = %v", err)
	}
	return n == 1
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := LoadMigrations(testMigrations())
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("LoadMigrations() len = %d, want 2", len(migrations))
	}

	first := migrations[0]
	if first.Version != "20260101_000000" || first.Name != "widgets" {
		t.Errorf("first = %s %s, want 20260101_000000 widgets", first.Version, first.Name)
	}
	if first.DownSQL == "" {
		t.Error("first migration missing down SQL")
	}
	if migrations[1].DownSQL != "" {
		t.Error("second migration has unexpected down SQL")
	}

	if got, err := LoadMigrations(nil); err != nil || got != nil {
		t.Errorf("LoadMigrations(nil) = %v, %v; want nil, nil", got, err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		file        string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_090000_audit_logs.up.sql", "20260301_090000", "audit_logs", true, true},
		{"20260301_090000_audit_logs.down.sql", "20260301_090000", "audit_logs", false, true},
		{"20260301_090000.up.sql", "20260301_090000", "", true, true},
		{"20260301.up.sql", "", "", false, false},
		{"20260301_090000_x.sql", "", "", false, false},
		{"20260301_090000_x.up.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.file)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("parseMigrationFilename(%q) = %q, %q, %v, %v; want %q, %q, %v, %v",
					tt.file, version, name, up, ok, tt.wantVersion, tt.wantName, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "widgets") {
		t.Fatal("widgets table not created")
	}
	if _, err := db.Exec("INSERT INTO widgets (id, name, colour) VALUES ('w1', 'sprocket', 'red')"); err != nil {
		t.Errorf("second migration not applied: %v", err)
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied = %d, pending = %d; want 2, 0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	// Re-running is a no-op.
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureKeepsEarlierMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte(`CREATE TABLE ok_table (id INTEGER);`)},
		"20260102_000000_broken.up.sql": {Data: []byte(`CREATE TABLE (;`)},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() error = nil, want failure")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("earlier migration rolled back")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied = %d, pending = %d; want 1, 1", len(applied), len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"20260101_000000_widgets.up.sql":   {Data: []byte(`CREATE TABLE widgets (id TEXT);`)},
		"20260101_000000_widgets.down.sql": {Data: []byte(`DROP TABLE widgets;`)},
	}

	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() with nothing applied error = %v", err)
	}

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets table still exists after MigrateDown")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"20260101_000000_widgets.up.sql": {Data: []byte(`CREATE TABLE widgets (id TEXT);`)},
	}

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err == nil {
		t.Error("MigrateDown() error = nil, want missing down SQL")
	}
}
