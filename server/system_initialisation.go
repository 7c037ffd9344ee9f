package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/crmkit/access-server/accounts"
	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/internal/config"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/permissions"
)

const DefaultAdminUsername = "admin"

// InitialiseSystem bootstraps first-run state: the privileged operator account
// and the default permission matrix rows. Both steps are idempotent across
// restarts. Returns the generated password via log output on first creation.
func (s *Server) InitialiseSystem(ctx context.Context, cfg config.Config) error {
	generatedPassword, err := s.initialiseAdminAccount(cfg)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap admin account: %w", err)
	}

	if err := s.initialisePermissionMatrix(); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to bootstrap permission matrix: %w", err)
	}

	if generatedPassword != "" {
		log.Printf("System Configuration:")
		log.Printf("   Base URL:    %s", cfg.GetBaseURL())
		log.Printf("")
		log.Printf("Privileged Operator Credentials:")
		log.Printf("   Username:    %s", DefaultAdminUsername)
		log.Printf("   Password:    %s     (change after first sign-in)", generatedPassword)
		log.Printf("")
	}
	return nil
}

// initialiseAdminAccount creates the privileged account if none exists.
// Returns the generated password on first creation (empty string otherwise).
func (s *Server) initialiseAdminAccount(cfg config.Config) (string, error) {
	_, err := s.deps.Accounts.GetByUsername(DefaultAdminUsername)
	if err == nil {
		return "", nil
	}
	if !pkgerrors.Is(err, interrors.ErrNotFound) {
		return "", fmt.Errorf("[server initialiseAdminAccount] lookup: %w", err)
	}

	generatedPassword := config.GetEnv("ADMIN_PASSWORD", "")
	if generatedPassword == "" {
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", fmt.Errorf("[server initialiseAdminAccount] failed to generate password: %w", err)
		}
		generatedPassword = base64.URLEncoding.EncodeToString(passwordBytes)
	}

	passwordHash, err := accounts.HashPassword(generatedPassword)
	if err != nil {
		return "", fmt.Errorf("[server initialiseAdminAccount] failed to hash password: %w", err)
	}

	account := &accounts.Account{
		ID:           uuid.New().String(),
		Username:     DefaultAdminUsername,
		Email:        config.GetEnv("ADMIN_EMAIL", ""),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	if err := s.deps.Accounts.Upsert(account); err != nil {
		return "", fmt.Errorf("[server initialiseAdminAccount] failed to create account: %w", err)
	}
	return generatedPassword, nil
}

// initialisePermissionMatrix seeds the stored matrix from the hardcoded
// defaults when no rows exist yet. Existing rows are never touched, so
// operator customisations survive restarts.
func (s *Server) initialisePermissionMatrix() error {
	matrix, err := s.deps.Perms.Load()
	if err != nil {
		return fmt.Errorf("[server initialisePermissionMatrix] load: %w", err)
	}

	// Load force-adds the privileged role, so more than one role means rows
	// already exist in storage.
	if len(matrix) > 1 {
		return nil
	}

	var entries []*permissions.Entry
	for role, features := range permissions.DefaultMatrix() {
		if role == identity.RolePrivileged {
			continue
		}
		for feature, flags := range features {
			entries = append(entries, &permissions.Entry{
				Role:     role,
				Feature:  feature,
				CanRead:  flags.CanRead,
				CanWrite: flags.CanWrite,
			})
		}
	}
	if err := s.deps.Perms.BulkUpsert(entries); err != nil {
		return fmt.Errorf("[server initialisePermissionMatrix] seed: %w", err)
	}
	log.Printf("[server initialisePermissionMatrix] Seeded %d default permission entries", len(entries))
	return nil
}
