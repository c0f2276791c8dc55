// Package dbtest opens throwaway sqlite databases carrying the texnika schema.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE
);`,
	`CREATE TABLE cities (
  id TEXT PRIMARY KEY,
  region_id TEXT,
  name TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE
);`,
	`CREATE TABLE dealers (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  plan TEXT
);`,
	`CREATE TABLE specialists (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  boost_score REAL NOT NULL DEFAULT 0,
  updated_at DATETIME
);`,
	`CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  dealer_id TEXT,
  category_id TEXT NOT NULL,
  city_id TEXT,
  region_id TEXT,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  slug TEXT NOT NULL,
  status TEXT NOT NULL,
  deal_type TEXT NOT NULL,
  seller_type TEXT NOT NULL,
  price_kzt TEXT,
  price_currency TEXT NOT NULL DEFAULT 'KZT',
  params BLOB,
  specs BLOB,
  latitude REAL,
  longitude REAL,
  boost_score REAL NOT NULL DEFAULT 0,
  expires_at DATETIME,
  published_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE listing_media (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  url TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`,
	`CREATE TABLE pricing_plans (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  title TEXT NOT NULL,
  description TEXT,
  price_kzt INTEGER NOT NULL,
  duration_days INTEGER NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL,
  total_kzt INTEGER NOT NULL,
  provider TEXT NOT NULL,
  payment_mode TEXT,
  metadata BLOB,
  paid_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  subject_type TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  plan_code TEXT NOT NULL,
  price_kzt INTEGER NOT NULL,
  duration_days INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  balance_kzt INTEGER NOT NULL DEFAULT 0 CHECK (balance_kzt >= 0),
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT wallets_user_id_key UNIQUE (user_id)
);`,
	`CREATE TABLE transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL REFERENCES wallets(id),
  type TEXT NOT NULL,
  amount_kzt INTEGER NOT NULL CHECK (amount_kzt > 0),
  order_id TEXT,
  meta BLOB,
  created_at DATETIME
);`,
	`CREATE TABLE promotion_activations (
  id TEXT PRIMARY KEY,
  subject_type TEXT NOT NULL,
  subject_id TEXT NOT NULL,
  listing_id TEXT,
  specialist_id TEXT,
  plan_code TEXT NOT NULL,
  status TEXT NOT NULL,
  started_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  order_item_id TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a file-backed sqlite database with the full schema applied.
// It is pinned to one connection so transactions serialise like row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "texnika.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

// TxRunner runs fn inside a gorm transaction on DB.
type TxRunner struct {
	DB *gorm.DB
}

func (r TxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}
