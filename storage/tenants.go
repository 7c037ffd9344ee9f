package storage

import (
	"database/sql"
	"time"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/tenants"
	"github.com/pkg/errors"
)

var _ tenants.Repo = (*TenantRepo)(nil)

type TenantRepo struct {
	db *sql.DB
}

func (r *TenantRepo) Upsert(site *tenants.Site) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "[TenantRepo.Upsert] begin")
	}
	defer tx.Rollback()

	createdAt := site.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO tenant_sites (id, name, url, username, secret, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			username = excluded.username,
			secret = excluded.secret,
			is_default = excluded.is_default`,
		site.ID, site.Name, site.URL, site.Username, site.Secret,
		boolInt(site.IsDefault), createdAt.Unix())
	if err != nil {
		return errors.Wrap(err, "[TenantRepo.Upsert] site")
	}

	if _, err := tx.Exec(`DELETE FROM tenant_assignments WHERE site_id = ?`, site.ID); err != nil {
		return errors.Wrap(err, "[TenantRepo.Upsert] clear assignments")
	}
	for _, subjectID := range site.AssignedSubjectIDs {
		if _, err := tx.Exec(`INSERT INTO tenant_assignments (site_id, subject_id) VALUES (?, ?)`,
			site.ID, subjectID); err != nil {
			return errors.Wrap(err, "[TenantRepo.Upsert] assignment")
		}
	}
	return errors.Wrap(tx.Commit(), "[TenantRepo.Upsert] commit")
}

func (r *TenantRepo) Delete(siteID string) error {
	result, err := r.db.Exec(`DELETE FROM tenant_sites WHERE id = ?`, siteID)
	if err != nil {
		return errors.Wrap(err, "[TenantRepo.Delete]")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return interrors.ErrNotFound
	}
	return nil
}

func (r *TenantRepo) Get(siteID string) (*tenants.Site, error) {
	var site tenants.Site
	var isDefault int
	var createdAt int64
	err := r.db.QueryRow(`
		SELECT id, name, url, username, secret, is_default, created_at
		FROM tenant_sites WHERE id = ?`, siteID).Scan(
		&site.ID, &site.Name, &site.URL, &site.Username, &site.Secret, &isDefault, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "[TenantRepo.Get]")
	}
	site.IsDefault = isDefault == 1
	site.CreatedAt = time.Unix(createdAt, 0)
	if err := r.loadAssignments(&site); err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *TenantRepo) List(offset, limit int) ([]*tenants.Site, error) {
	rows, err := r.db.Query(`
		SELECT id, name, url, username, secret, is_default, created_at
		FROM tenant_sites ORDER BY is_default DESC, name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.List]")
	}
	defer rows.Close()

	var sites []*tenants.Site
	for rows.Next() {
		var site tenants.Site
		var isDefault int
		var createdAt int64
		if err := rows.Scan(&site.ID, &site.Name, &site.URL, &site.Username, &site.Secret, &isDefault, &createdAt); err != nil {
			return nil, errors.Wrap(err, "[TenantRepo.List] scan")
		}
		site.IsDefault = isDefault == 1
		site.CreatedAt = time.Unix(createdAt, 0)
		sites = append(sites, &site)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[TenantRepo.List] rows")
	}
	for _, site := range sites {
		if err := r.loadAssignments(site); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

func (r *TenantRepo) loadAssignments(site *tenants.Site) error {
	rows, err := r.db.Query(`SELECT subject_id FROM tenant_assignments WHERE site_id = ?`, site.ID)
	if err != nil {
		return errors.Wrap(err, "[TenantRepo.loadAssignments]")
	}
	defer rows.Close()
	for rows.Next() {
		var subjectID string
		if err := rows.Scan(&subjectID); err != nil {
			return errors.Wrap(err, "[TenantRepo.loadAssignments] scan")
		}
		site.AssignedSubjectIDs = append(site.AssignedSubjectIDs, subjectID)
	}
	return errors.Wrap(rows.Err(), "[TenantRepo.loadAssignments] rows")
}
