package storage

import (
	"database/sql"
	"time"

	"github.com/crmkit/access-server/identity"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/internal/utils"
	"github.com/crmkit/access-server/sessions"
	"github.com/pkg/errors"
)

var _ sessions.Repo = (*SessionRepo)(nil)

type SessionRepo struct {
	db *sql.DB
}

// CreateActive runs the invalidate-previous and insert-new statements inside
// one transaction so two near-simultaneous logins cannot both end up active.
func (r *SessionRepo) CreateActive(record *sessions.Record) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.CreateActive] begin")
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE session_records SET is_active = 0, invalidated_at = ?
		WHERE subject_id = ? AND subject_kind = ? AND is_active = 1`,
		record.CreatedAt.Unix(), record.SubjectID, string(record.SubjectKind))
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.CreateActive] invalidate previous")
	}

	_, err = tx.Exec(`
		INSERT INTO session_records
			(id, subject_id, subject_kind, token_hash, is_active, ip_address, user_agent, created_at, expires_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		record.ID, record.SubjectID, string(record.SubjectKind), record.TokenHash,
		record.IPAddress, record.UserAgent, record.CreatedAt.Unix(), record.ExpiresAt.Unix())
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.CreateActive] insert")
	}
	return errors.Wrap(tx.Commit(), "[SessionRepo.CreateActive] commit")
}

func (r *SessionRepo) GetByTokenHash(tokenHash string) (*sessions.Record, error) {
	var record sessions.Record
	var kind string
	var isActive int
	var createdAt, expiresAt int64
	var invalidatedAt sql.NullInt64
	err := r.db.QueryRow(`
		SELECT id, subject_id, subject_kind, token_hash, is_active, ip_address, user_agent,
		       created_at, expires_at, invalidated_at
		FROM session_records WHERE token_hash = ?`, tokenHash).Scan(
		&record.ID, &record.SubjectID, &kind, &record.TokenHash, &isActive,
		&record.IPAddress, &record.UserAgent, &createdAt, &expiresAt, &invalidatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "[SessionRepo.GetByTokenHash]")
	}
	record.SubjectKind = identity.SubjectKind(kind)
	record.IsActive = isActive == 1
	record.CreatedAt = time.Unix(createdAt, 0)
	record.ExpiresAt = time.Unix(expiresAt, 0)
	if invalidatedAt.Valid {
		record.InvalidatedAt = utils.Ptr(time.Unix(invalidatedAt.Int64, 0))
	}
	return &record, nil
}

func (r *SessionRepo) InvalidateByTokenHash(tokenHash string, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE session_records SET is_active = 0, invalidated_at = ?
		WHERE token_hash = ? AND is_active = 1`, at.Unix(), tokenHash)
	if err != nil {
		return errors.Wrap(err, "[SessionRepo.InvalidateByTokenHash]")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Unknown or already invalidated; report not-found and let the
		// registry treat it as idempotent.
		return interrors.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) InvalidateAll(subjectID string, kind identity.SubjectKind, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE session_records SET is_active = 0, invalidated_at = ?
		WHERE subject_id = ? AND subject_kind = ? AND is_active = 1`,
		at.Unix(), subjectID, string(kind))
	return errors.Wrap(err, "[SessionRepo.InvalidateAll]")
}
