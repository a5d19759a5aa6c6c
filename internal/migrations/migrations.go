// Package migrations creates the database schema on startup.
package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id           TEXT PRIMARY KEY,
		full_name    TEXT NOT NULL,
		store_name   TEXT NOT NULL,
		location     TEXT NOT NULL DEFAULT '',
		contact_no   TEXT NOT NULL DEFAULT '',
		email        TEXT NOT NULL UNIQUE,
		gst_no       TEXT,
		store_lic_no TEXT,
		license_key  TEXT NOT NULL DEFAULT '',
		password     TEXT NOT NULL,
		role         TEXT NOT NULL DEFAULT 'customer',
		active       BOOLEAN NOT NULL DEFAULT true,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS end_user_bills (
		id             TEXT PRIMARY KEY,
		customer_id    TEXT NOT NULL REFERENCES customers(id),
		patient_name   TEXT NOT NULL,
		patient_mobile TEXT,
		doctor_name    TEXT,
		items          JSONB NOT NULL,
		sub_total      DOUBLE PRECISION NOT NULL DEFAULT 0,
		discount       DOUBLE PRECISION NOT NULL DEFAULT 0,
		grand_total    DOUBLE PRECISION NOT NULL DEFAULT 0,
		payment_mode   TEXT NOT NULL DEFAULT 'Cash',
		status         TEXT NOT NULL DEFAULT 'DRAFT',
		bill_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_end_user_bills_customer_created
		ON end_user_bills (customer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_end_user_bills_customer_status_date
		ON end_user_bills (customer_id, status, bill_date)`,

	`CREATE TABLE IF NOT EXISTS agency_bills (
		id             TEXT PRIMARY KEY,
		customer_id    TEXT NOT NULL REFERENCES customers(id),
		agency_name    TEXT NOT NULL,
		agency_contact TEXT,
		agency_email   TEXT,
		agency_gstin   TEXT,
		agency_address TEXT,
		contact_person TEXT,
		credit_terms   INTEGER NOT NULL DEFAULT 0,
		items          JSONB NOT NULL,
		sub_total      DOUBLE PRECISION NOT NULL DEFAULT 0,
		discount       DOUBLE PRECISION NOT NULL DEFAULT 0,
		gst            DOUBLE PRECISION NOT NULL DEFAULT 0,
		grand_total    DOUBLE PRECISION NOT NULL DEFAULT 0,
		payment_mode   TEXT NOT NULL DEFAULT 'Cash',
		paid_amount    DOUBLE PRECISION NOT NULL DEFAULT 0,
		due_amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
		due_date       TIMESTAMPTZ,
		status         TEXT NOT NULL DEFAULT 'DRAFT',
		bill_date      TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agency_bills_customer_created
		ON agency_bills (customer_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS inventory (
		id              TEXT PRIMARY KEY,
		customer_id     TEXT NOT NULL REFERENCES customers(id),
		product_name    TEXT NOT NULL,
		hsn             TEXT,
		batch           TEXT NOT NULL,
		exp             TEXT,
		qty             INTEGER NOT NULL DEFAULT 0,
		mrp             DOUBLE PRECISION NOT NULL DEFAULT 0,
		purchase_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
		gst_percent     DOUBLE PRECISION NOT NULL DEFAULT 0,
		supplier_name   TEXT,
		last_updated_by TEXT,
		low_stock_alert INTEGER NOT NULL DEFAULT 5,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (customer_id, product_name, batch)
	)`,

	`CREATE TABLE IF NOT EXISTS purchases (
		id          TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(id),
		store_name  TEXT NOT NULL DEFAULT '',
		supplier    JSONB NOT NULL,
		invoice     JSONB NOT NULL,
		items       JSONB NOT NULL,
		summary     JSONB NOT NULL,
		gst_breakup JSONB,
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchases_customer_created
		ON purchases (customer_id, created_at DESC)`,
}

// Run applies the schema statements in order. Statements are idempotent.
func Run(db *sqlx.DB) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}
