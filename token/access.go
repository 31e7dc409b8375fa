package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-ordering-server/users"
	"github.com/pkg/errors"
)

// AccessClaims binds an access token to a user. Validity is purely a function
// of signature and expiry; nothing is tracked server-side.
type AccessClaims struct {
	Email  string `json:"email"`
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// AccessIssuer mints and verifies access tokens
type AccessIssuer struct {
	signer Signer
	expiry time.Duration
	now    func() time.Time
}

func NewAccessIssuer(signer Signer, expiry time.Duration, opts ...Option) *AccessIssuer {
	o := buildOptions(opts)
	return &AccessIssuer{
		signer: signer,
		expiry: expiry,
		now:    o.now,
	}
}

// Issue creates an access token for user, returning it with its expiry time.
func (i *AccessIssuer) Issue(user *users.User) (string, time.Time, error) {
	if user == nil || user.ID == "" {
		return "", time.Time{}, errors.Wrap(ErrInvalidToken, "[AccessIssuer.Issue] user has no id")
	}

	now := i.now()
	exp := now.Add(i.expiry)
	claims := AccessClaims{
		Email:  user.Email,
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature and expiry and returns the embedded identity.
func (i *AccessIssuer) Verify(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parse(i.signer, raw, claims, i.now); err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.Wrap(ErrInvalidToken, "missing id claim")
	}
	return claims, nil
}

func (i *AccessIssuer) Expiry() time.Duration {
	return i.expiry
}
