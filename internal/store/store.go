// Package store persists extracted shipments in PostgreSQL. Persistence is
// optional for the CLI; the engine itself never touches the database.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kwittgruber/parceltrace/pkg/portal"
)

// DB is the pool surface the store uses. *pgxpool.Pool satisfies it, and so
// do the pgxmock test doubles.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes shipment rows.
type Store struct {
	db  DB
	log *zap.Logger
}

// New creates a store over an existing pool or mock.
func New(db DB, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger.Named("store")}
}

// Connect opens a pgx pool against the given URL and verifies it with a ping.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging database: %w", err)
	}
	logger.Info("database connection established")
	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS shipments (
    tracking_number TEXT PRIMARY KEY,
    customer_name   TEXT NOT NULL,
    status          TEXT NOT NULL,
    location        TEXT NOT NULL DEFAULT '',
    last_update     TIMESTAMPTZ,
    is_overdue      BOOLEAN NOT NULL DEFAULT FALSE,
    scraped_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the shipments table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: ensuring schema: %w", err)
	}
	return nil
}

const upsertSQL = `
INSERT INTO shipments (tracking_number, customer_name, status, location, last_update, is_overdue, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (tracking_number) DO UPDATE SET
    customer_name = EXCLUDED.customer_name,
    status        = EXCLUDED.status,
    location      = EXCLUDED.location,
    last_update   = EXCLUDED.last_update,
    is_overdue    = EXCLUDED.is_overdue,
    scraped_at    = NOW()`

// UpsertShipments writes one scrape's worth of rows, keyed by tracking
// number. Re-scraping the same shipment overwrites the previous row.
func (s *Store) UpsertShipments(ctx context.Context, shipments []portal.ShipmentSummary) error {
	for _, sh := range shipments {
		_, err := s.db.Exec(ctx, upsertSQL,
			sh.TrackingNumber, sh.CustomerName, sh.Status, sh.Location, sh.LastUpdate, sh.IsOverdue)
		if err != nil {
			return fmt.Errorf("store: upserting shipment %s: %w", sh.TrackingNumber, err)
		}
	}
	s.log.Info("shipments persisted", zap.Int("count", len(shipments)))
	return nil
}

const listSQL = `
SELECT tracking_number, customer_name, status, location, last_update, is_overdue
FROM shipments
ORDER BY scraped_at DESC, tracking_number`

// ListShipments returns all stored shipments, newest scrape first.
func (s *Store) ListShipments(ctx context.Context) ([]portal.ShipmentSummary, error) {
	rows, err := s.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("store: listing shipments: %w", err)
	}
	defer rows.Close()

	var out []portal.ShipmentSummary
	for rows.Next() {
		var sh portal.ShipmentSummary
		if err := rows.Scan(&sh.TrackingNumber, &sh.CustomerName, &sh.Status, &sh.Location, &sh.LastUpdate, &sh.IsOverdue); err != nil {
			return nil, fmt.Errorf("store: scanning shipment row: %w", err)
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating shipment rows: %w", err)
	}
	return out, nil
}

const deleteOldSQL = `DELETE FROM shipments WHERE scraped_at < $1`

// DeleteOlderThan removes rows last scraped before the cutoff and reports
// how many went away.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteOldSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: deleting stale shipments: %w", err)
	}
	return tag.RowsAffected(), nil
}
