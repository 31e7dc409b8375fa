package auth

import (
	"strings"

	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/jrsteele09/go-ordering-server/users"
)

// LoginParameters is the login request body. Email is the older field name
// for Identifier and is still accepted.
type LoginParameters struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}

// GetIdentifier returns the identifier, falling back to the legacy email field.
func (p LoginParameters) GetIdentifier() string {
	if p.Identifier != "" {
		return p.Identifier
	}
	return p.Email
}

// Validate reports every missing field in one error.
func (p LoginParameters) Validate() error {
	var missing []string
	if strings.TrimSpace(p.GetIdentifier()) == "" {
		missing = append(missing, "identifier")
	}
	if p.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return apperrors.Wrapf(apperrors.ErrMissingField, "%s", strings.Join(missing, ", "))
	}
	return nil
}

// LoginResult is returned on a successful login. It never carries the password hash.
type LoginResult struct {
	Token     string         `json:"token"`
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	UserType  users.UserType `json:"userType"`
	State     users.Status   `json:"state"`
}

func newLoginResult(token string, u *users.User) *LoginResult {
	return &LoginResult{
		Token:     token,
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		UserType:  u.UserType,
		State:     u.Status,
	}
}
