package repository

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; a single connection serializes push batches
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Land measurements
	CREATE TABLE IF NOT EXISTS measurements (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		name TEXT NOT NULL,
		polygon TEXT NOT NULL,
		area_square_meters REAL NOT NULL,
		area_acres REAL NOT NULL,
		area_hectares REAL NOT NULL,
		perimeter_meters REAL NOT NULL,
		center_latitude REAL NOT NULL,
		center_longitude REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'confirmed',
		sync_status TEXT NOT NULL DEFAULT 'synced',
		offline_id TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		deleted_at TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_measurements_org_offline ON measurements(organization_id, offline_id);
	CREATE INDEX IF NOT EXISTS idx_measurements_org_updated ON measurements(organization_id, updated_at);
	CREATE INDEX IF NOT EXISTS idx_measurements_org_version ON measurements(organization_id, version);

	-- Field service jobs
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		offline_id TEXT,
		land_id TEXT,
		customer_id TEXT,
		driver_id TEXT,
		machine_id TEXT,
		title TEXT NOT NULL,
		service_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		scheduled_at TIMESTAMP,
		completed_at TIMESTAMP,
		notes TEXT NOT NULL DEFAULT '',
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_org_offline ON jobs(organization_id, offline_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_org_updated ON jobs(organization_id, updated_at);

	-- Expenses
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		offline_id TEXT,
		job_id TEXT,
		category TEXT NOT NULL,
		amount REAL NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		expense_date TIMESTAMP NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_expenses_org_offline ON expenses(organization_id, offline_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_org_updated ON expenses(organization_id, updated_at);

	-- Payments
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		offline_id TEXT,
		job_id TEXT,
		customer_id TEXT,
		amount REAL NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		paid_at TIMESTAMP NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_org_offline ON payments(organization_id, offline_id);
	CREATE INDEX IF NOT EXISTS idx_payments_org_updated ON payments(organization_id, updated_at);

	-- Sync audit log (append-only)
	CREATE TABLE IF NOT EXISTS sync_logs (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		device_id TEXT,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		offline_id TEXT NOT NULL,
		action TEXT NOT NULL,
		status TEXT NOT NULL,
		conflict_data TEXT,
		message TEXT,
		resolution TEXT,
		resolved_by TEXT,
		resolved_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sync_logs_org_status ON sync_logs(organization_id, status);
	CREATE INDEX IF NOT EXISTS idx_sync_logs_org_created ON sync_logs(organization_id, created_at);

	-- GPS breadcrumbs (insert-only)
	CREATE TABLE IF NOT EXISTS tracking_points (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		job_id TEXT,
		device_id TEXT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		altitude REAL,
		accuracy REAL,
		speed REAL,
		heading REAL,
		recorded_at TIMESTAMP NOT NULL,
		received_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tracking_org_driver ON tracking_points(organization_id, driver_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_tracking_org_job ON tracking_points(organization_id, job_id, recorded_at);

	-- Per-organization change sequence
	CREATE TABLE IF NOT EXISTS sync_counters (
		organization_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
