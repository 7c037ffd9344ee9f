package storage

import (
	"database/sql"
	"time"

	"github.com/crmkit/access-server/accounts"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/pkg/errors"
)

var _ accounts.Repo = (*AccountRepo)(nil)

type AccountRepo struct {
	db *sql.DB
}

func (r *AccountRepo) Upsert(account *accounts.Account) error {
	_, err := r.db.Exec(`
		INSERT INTO accounts (id, username, email, password_hash, totp_secret, created_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			email = excluded.email,
			password_hash = excluded.password_hash,
			totp_secret = excluded.totp_secret`,
		account.ID, account.Username, account.Email, account.PasswordHash,
		account.TOTPSecret, account.CreatedAt.Unix(), unixOrZero(account.LastLogin))
	return errors.Wrap(err, "[AccountRepo.Upsert]")
}

func (r *AccountRepo) GetByUsername(username string) (*accounts.Account, error) {
	return r.get(`SELECT id, username, email, password_hash, totp_secret, created_at, last_login
		FROM accounts WHERE username = ? COLLATE NOCASE`, username)
}

func (r *AccountRepo) GetByEmail(email string) (*accounts.Account, error) {
	return r.get(`SELECT id, username, email, password_hash, totp_secret, created_at, last_login
		FROM accounts WHERE email = ? COLLATE NOCASE`, email)
}

func (r *AccountRepo) GetByID(id string) (*accounts.Account, error) {
	return r.get(`SELECT id, username, email, password_hash, totp_secret, created_at, last_login
		FROM accounts WHERE id = ?`, id)
}

func (r *AccountRepo) SetLastLogin(id string) error {
	result, err := r.db.Exec(`UPDATE accounts SET last_login = ? WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return errors.Wrap(err, "[AccountRepo.SetLastLogin]")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return interrors.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) get(query string, arg interface{}) (*accounts.Account, error) {
	var account accounts.Account
	var createdAt, lastLogin int64
	err := r.db.QueryRow(query, arg).Scan(
		&account.ID, &account.Username, &account.Email, &account.PasswordHash,
		&account.TOTPSecret, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "[AccountRepo.get]")
	}
	account.CreatedAt = time.Unix(createdAt, 0)
	if lastLogin > 0 {
		account.LastLogin = time.Unix(lastLogin, 0)
	}
	return &account, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
