// Package accounts holds the single privileged operator account. It is
// created by the seed step on first boot and mutated only by password reset;
// it is never deleted in normal operation.
package accounts

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	TOTPSecret   string    `json:"-"` // optional second factor, empty when disabled
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// HasTOTP reports whether login requires a one-time code.
func (a *Account) HasTOTP() bool {
	return a.TOTPSecret != ""
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
