package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	-- Land measurements
	CREATE TABLE IF NOT EXISTS measurements (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		created_by TEXT NOT NULL,
		name TEXT NOT NULL,
		polygon TEXT NOT NULL,
		area_square_meters DOUBLE PRECISION NOT NULL,
		area_acres DOUBLE PRECISION NOT NULL,
		area_hectares DOUBLE PRECISION NOT NULL,
		perimeter_meters DOUBLE PRECISION NOT NULL,
		center_latitude DOUBLE PRECISION NOT NULL,
		center_longitude DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL DEFAULT 'confirmed',
		sync_status TEXT NOT NULL DEFAULT 'synced',
		offline_id TEXT,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
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
		scheduled_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		notes TEXT NOT NULL DEFAULT '',
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
		amount DOUBLE PRECISION NOT NULL,
		currency TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		expense_date TIMESTAMPTZ NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
		amount DOUBLE PRECISION NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		paid_at TIMESTAMPTZ NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'synced',
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
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
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		altitude DOUBLE PRECISION,
		accuracy DOUBLE PRECISION,
		speed DOUBLE PRECISION,
		heading DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tracking_org_driver ON tracking_points(organization_id, driver_id, recorded_at);
	CREATE INDEX IF NOT EXISTS idx_tracking_org_job ON tracking_points(organization_id, job_id, recorded_at);

	-- Per-organization change sequence
	CREATE TABLE IF NOT EXISTS sync_counters (
		organization_id TEXT PRIMARY KEY,
		version BIGINT NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
