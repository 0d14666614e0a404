package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/imprecode/gestion-visitas/pkg/database"
	"go.uber.org/zap"
)

// Schema mirrors migrations/001_initial_schema.sql so tests run against the
// same DDL the service boots with.
const Schema = `
CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'sin-asignar',
    subtype       TEXT NOT NULL DEFAULT '',
    department    TEXT NOT NULL DEFAULT '',
    phone         TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL DEFAULT '',
    deleted_at    DATETIME,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE visits (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    client_name TEXT NOT NULL,
    city        TEXT NOT NULL,
    departure   DATETIME NOT NULL,
    return_date DATETIME NOT NULL,
    purpose     TEXT NOT NULL DEFAULT '',
    air_travel  INTEGER NOT NULL DEFAULT 0,
    manager_id  INTEGER NOT NULL REFERENCES users(id),
    status      TEXT NOT NULL DEFAULT 'pendiente',
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE approvals (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    visit_id   INTEGER NOT NULL REFERENCES visits(id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    status     TEXT NOT NULL DEFAULT 'pendiente',
    comment    TEXT NOT NULL DEFAULT '',
    decided_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (visit_id, role)
);

CREATE TABLE invoices (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    visit_id    INTEGER NOT NULL UNIQUE REFERENCES visits(id) ON DELETE CASCADE,
    description TEXT NOT NULL DEFAULT '',
    total       REAL NOT NULL DEFAULT 0,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE invoice_files (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_id    INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    original_name TEXT NOT NULL,
    stored_path   TEXT NOT NULL,
    uploaded_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// NewDB opens a throwaway sqlite database in the test's temp dir with the
// full schema applied.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply test schema: %v", err)
	}
	return db
}
