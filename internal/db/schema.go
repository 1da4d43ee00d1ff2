package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'volunteer' CHECK (role IN ('admin', 'coordinator', 'volunteer')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS facilities (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    type       TEXT NOT NULL CHECK (type IN ('shelter', 'hub')),
    district   TEXT,
    phone      TEXT,
    capacity   INTEGER NOT NULL DEFAULT 0 CHECK (capacity >= 0),
    photo      BLOB,
    photo_mime TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

-- Append-only: rows are only ever inserted, never updated or deleted.
-- Occupancy is always derived from this log, never cached.
CREATE TABLE IF NOT EXISTS occupancy_events (
    id          INTEGER PRIMARY KEY,
    facility_id INTEGER NOT NULL REFERENCES facilities(id),
    direction   TEXT NOT NULL CHECK (direction IN ('in', 'out')),
    amount      INTEGER NOT NULL CHECK (amount > 0),
    occurred_on TEXT NOT NULL,
    note        TEXT,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_occupancy_events_facility_day
    ON occupancy_events(facility_id, occurred_on);

CREATE TABLE IF NOT EXISTS stock_batches (
    id         INTEGER PRIMARY KEY,
    item_name  TEXT NOT NULL,
    category   TEXT NOT NULL,
    quantity   INTEGER NOT NULL CHECK (quantity >= 0),
    unit       TEXT NOT NULL DEFAULT 'pcs',
    source_id  INTEGER REFERENCES facilities(id),
    supplier   TEXT,
    expires_on TEXT,
    notes      TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stock_batches_item
    ON stock_batches(item_name COLLATE NOCASE, category);

CREATE INDEX IF NOT EXISTS idx_stock_batches_source
    ON stock_batches(source_id);

CREATE TABLE IF NOT EXISTS resource_requests (
    id              INTEGER PRIMARY KEY,
    facility_id     INTEGER NOT NULL REFERENCES facilities(id),
    item_name       TEXT NOT NULL,
    category        TEXT NOT NULL,
    amount          INTEGER NOT NULL CHECK (amount > 0),
    unit            TEXT NOT NULL DEFAULT 'pcs',
    urgency         TEXT NOT NULL DEFAULT 'medium' CHECK (urgency IN ('low', 'medium', 'high')),
    status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'received')),
    source_hub_id   INTEGER REFERENCES facilities(id),
    approved_amount INTEGER,
    requested_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    resolved_at     DATETIME,
    received_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_resource_requests_facility
    ON resource_requests(facility_id, status);

CREATE TABLE IF NOT EXISTS disbursements (
    id           INTEGER PRIMARY KEY,
    request_id   INTEGER NOT NULL REFERENCES resource_requests(id),
    batch_id     INTEGER NOT NULL REFERENCES stock_batches(id),
    amount_taken INTEGER NOT NULL CHECK (amount_taken > 0),
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_disbursements_request
    ON disbursements(request_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema
// creation. Each migration must be idempotent. Append new migrations at
// the end.
var migrations = []string{}

// Migrate creates the schema and runs migrations.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
