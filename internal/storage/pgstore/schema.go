package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS packages (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  status TEXT NOT NULL,
  tracking_id TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  weight DOUBLE PRECISION NOT NULL DEFAULT 0,
  length DOUBLE PRECISION NOT NULL DEFAULT 0,
  width DOUBLE PRECISION NOT NULL DEFAULT 0,
  height DOUBLE PRECISION NOT NULL DEFAULT 0,
  recipient_name TEXT NOT NULL DEFAULT '',
  recipient_address TEXT NOT NULL DEFAULT '',
  recipient_contact TEXT NOT NULL DEFAULT '',
  estimated_delivery_time TIMESTAMPTZ NULL,
  images TEXT[] NOT NULL DEFAULT '{}',
  driver_id TEXT NULL,
  started_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  last_update TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_packages_owner_id ON packages(owner_id)`,
		`
CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  package_id TEXT NOT NULL UNIQUE,
  owner_id TEXT NOT NULL,
  driver_id TEXT NULL,
  status TEXT NOT NULL,
  tracking_id TEXT NOT NULL DEFAULT '',
  recipient_name TEXT NOT NULL DEFAULT '',
  recipient_address TEXT NOT NULL DEFAULT '',
  recipient_contact TEXT NOT NULL DEFAULT '',
  estimated_delivery_time TIMESTAMPTZ NULL,
  start_time TIMESTAMPTZ NULL,
  end_time TIMESTAMPTZ NULL,
  actual_delivery_time TIMESTAMPTZ NULL,
  issue TEXT NULL,
  last_update TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_driver_id ON deliveries(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_owner_id ON deliveries(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_status ON deliveries(status)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
