package repos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"stockhold/internal/domain"
)

// DemoProductID is the flash-sale product seeded into an empty store.
const DemoProductID = "11111111-1111-1111-1111-111111111111"

// Timestamps are stored as fixed-width UTC text so that lexical order is time
// order and the sweeper can filter with expires_at <= ?.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) { return time.Parse(tsLayout, s) }

// MaxFileConns sizes the pool for file databases. WAL lets readers run
// beside the single writer; writers queue on busy_timeout.
const MaxFileConns = 8

// OpenDB opens the sqlite store and ensures the schema exists.
//
// An in-memory database lives and dies with its connection, so it gets
// exactly one. File databases get a pool and IMMEDIATE transactions, so a
// writer takes sqlite's write lock at BEGIN instead of failing on upgrade.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	conns := MaxFileConns
	if isMemory(dsn) {
		conns = 1
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ensure schema")
	}
	return db, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func withPragmas(dsn string) string {
	if isMemory(dsn) || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Products (stock ledger)
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  available_stock INTEGER NOT NULL CHECK (available_stock >= 0),
  reserved_stock  INTEGER NOT NULL DEFAULT 0 CHECK (reserved_stock >= 0),
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);

-- Reservations (hold ledger, never deleted)
CREATE TABLE IF NOT EXISTS reservations(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
  user_id TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  reserved_at TEXT NOT NULL,
  expires_at TEXT NOT NULL,
  released INTEGER NOT NULL DEFAULT 0,
  released_at TEXT NULL,
  confirmed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_reservations_expires_at ON reservations(expires_at);
CREATE INDEX IF NOT EXISTS idx_reservations_product_user_released ON reservations(product_id, user_id, released);
`
	_, err := db.Exec(schema)
	return err
}

// SeedIfEmpty provisions the demo product when the store has no products.
func SeedIfEmpty(ctx context.Context, db *sqlx.DB, now time.Time) (bool, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return false, errors.Wrap(err, "count products")
	}
	if n > 0 {
		return false, nil
	}
	p, err := domain.NewProduct(DemoProductID, "Flash Sale Item", 100, now)
	if err != nil {
		return false, err
	}
	if err := NewProductRepo(db).Insert(ctx, p); err != nil {
		return false, err
	}
	return true, nil
}
