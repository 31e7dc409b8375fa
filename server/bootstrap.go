package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-ordering-server/users"
	"github.com/pkg/errors"
)

// BootstrapAdmin creates the admin account if no user holds adminEmail yet.
// When defaultPassword is empty a random one is generated. The password is
// returned only when the account was created in this call.
func BootstrapAdmin(ctx context.Context, repo users.UserRepo, adminEmail, defaultPassword string) (generatedPassword string, err error) {
	existing, err := repo.GetByEmail(ctx, adminEmail)
	switch {
	case err == nil && existing != nil:
		return "", nil
	case err != nil && !errors.Is(err, users.ErrUserNotFound):
		return "", errors.Wrap(err, "[server BootstrapAdmin] lookup failed")
	}

	generatedPassword = defaultPassword
	if generatedPassword == "" {
		// Generate a secure random password
		passwordBytes := make([]byte, 16)
		if _, err := rand.Read(passwordBytes); err != nil {
			return "", errors.Wrap(err, "[server BootstrapAdmin] failed to generate password")
		}
		generatedPassword = base64.URLEncoding.EncodeToString(passwordBytes)
	}

	passwordHash, err := users.HashPassword(generatedPassword)
	if err != nil {
		return "", errors.Wrap(err, "[server BootstrapAdmin] failed to hash password")
	}

	admin := &users.User{
		ID:           uuid.NewString(),
		Email:        adminEmail,
		FirstName:    "System",
		LastName:     "Administrator",
		UserType:     users.UserTypeAdmin,
		Status:       users.StatusActive,
		PasswordHash: passwordHash,
	}
	if err := repo.Create(ctx, admin); err != nil {
		return "", errors.Wrap(err, "[server BootstrapAdmin] failed to create admin")
	}
	return generatedPassword, nil
}
