// Package storage provides the SQLite-backed implementations of the domain
// repositories.
package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type DB struct {
	db *sql.DB
}

// Open creates or opens the database file under the data folder and applies
// the schema.
func Open(dataFolder string) (*DB, error) {
	if err := os.MkdirAll(dataFolder, 0o755); err != nil {
		return nil, errors.Wrap(err, "[storage.Open] mkdir")
	}

	db, err := sql.Open("sqlite", filepath.Join(dataFolder, "access.db"))
	if err != nil {
		return nil, errors.Wrap(err, "[storage.Open] open")
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "[storage.Open] pragma")
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "[storage.Open] migrate")
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Accounts() *AccountRepo {
	return &AccountRepo{db: d.db}
}

func (d *DB) Sessions() *SessionRepo {
	return &SessionRepo{db: d.db}
}

func (d *DB) Permissions() *PermissionRepo {
	return &PermissionRepo{db: d.db}
}

func (d *DB) Tenants() *TenantRepo {
	return &TenantRepo{db: d.db}
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	totp_secret   TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	last_login    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS session_records (
	id             TEXT PRIMARY KEY,
	subject_id     TEXT NOT NULL,
	subject_kind   TEXT NOT NULL,
	token_hash     TEXT NOT NULL UNIQUE,
	is_active      INTEGER NOT NULL,
	ip_address     TEXT NOT NULL DEFAULT '',
	user_agent     TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	expires_at     INTEGER NOT NULL,
	invalidated_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sessions_subject_active
	ON session_records (subject_id, subject_kind, is_active);

CREATE TABLE IF NOT EXISTS permission_entries (
	role       TEXT NOT NULL,
	feature    TEXT NOT NULL,
	can_read   INTEGER NOT NULL,
	can_write  INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (role, feature)
);

CREATE TABLE IF NOT EXISTS tenant_sites (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	username   TEXT NOT NULL DEFAULT '',
	secret     TEXT NOT NULL DEFAULT '',
	is_default INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tenant_assignments (
	site_id    TEXT NOT NULL REFERENCES tenant_sites(id) ON DELETE CASCADE,
	subject_id TEXT NOT NULL,
	PRIMARY KEY (site_id, subject_id)
);
`
