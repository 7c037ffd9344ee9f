package storage

import (
	"database/sql"
	"time"

	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/permissions"
	"github.com/pkg/errors"
)

var _ permissions.Repo = (*PermissionRepo)(nil)

type PermissionRepo struct {
	db *sql.DB
}

func (r *PermissionRepo) ListAll() ([]*permissions.Entry, error) {
	rows, err := r.db.Query(`SELECT role, feature, can_read, can_write, updated_at FROM permission_entries`)
	if err != nil {
		return nil, errors.Wrap(err, "[PermissionRepo.ListAll]")
	}
	defer rows.Close()

	var entries []*permissions.Entry
	for rows.Next() {
		var entry permissions.Entry
		var role, feature string
		var canRead, canWrite int
		var updatedAt int64
		if err := rows.Scan(&role, &feature, &canRead, &canWrite, &updatedAt); err != nil {
			return nil, errors.Wrap(err, "[PermissionRepo.ListAll] scan")
		}
		entry.Role = identity.Role(role)
		entry.Feature = permissions.Feature(feature)
		entry.CanRead = canRead == 1
		entry.CanWrite = canWrite == 1
		entry.UpdatedAt = time.Unix(updatedAt, 0)
		entries = append(entries, &entry)
	}
	return entries, errors.Wrap(rows.Err(), "[PermissionRepo.ListAll] rows")
}

func (r *PermissionRepo) Upsert(entry *permissions.Entry) error {
	_, err := r.db.Exec(upsertEntrySQL, args(entry)...)
	return errors.Wrap(err, "[PermissionRepo.Upsert]")
}

// BulkUpsert applies all entries inside one transaction: any failure rolls
// back the whole batch.
func (r *PermissionRepo) BulkUpsert(entries []*permissions.Entry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "[PermissionRepo.BulkUpsert] begin")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertEntrySQL)
	if err != nil {
		return errors.Wrap(err, "[PermissionRepo.BulkUpsert] prepare")
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(args(entry)...); err != nil {
			return errors.Wrapf(err, "[PermissionRepo.BulkUpsert] entry (%s,%s)", entry.Role, entry.Feature)
		}
	}
	return errors.Wrap(tx.Commit(), "[PermissionRepo.BulkUpsert] commit")
}

const upsertEntrySQL = `
	INSERT INTO permission_entries (role, feature, can_read, can_write, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (role, feature) DO UPDATE SET
		can_read = excluded.can_read,
		can_write = excluded.can_write,
		updated_at = excluded.updated_at`

func args(entry *permissions.Entry) []interface{} {
	return []interface{}{
		string(entry.Role), string(entry.Feature),
		boolInt(entry.CanRead), boolInt(entry.CanWrite), entry.UpdatedAt.Unix(),
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
