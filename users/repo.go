package users

import (
	"context"

	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
)

var (
	ErrUserNotFound  = apperrors.Wrapf(apperrors.ErrNotFound, "user")
	ErrDuplicateUser = apperrors.Wrapf(apperrors.ErrDuplicate, "user email or phone number")
)

// UserRepo is the credential store. Lookups return ErrUserNotFound when no
// record matches; Create and Update return ErrDuplicateUser on a unique clash.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByIdentifier matches identifier against email or phone number.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]*User, error)
}
