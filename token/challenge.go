package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const challengeUse = "refresh_challenge"

// ChallengeClaims carry only a random nonce (jti) and an expiry. A challenge
// token authorizes exactly one access-token refresh.
type ChallengeClaims struct {
	Use string `json:"use"`
	jwt.RegisteredClaims
}

// ChallengeIssuer mints and verifies challenge tokens
type ChallengeIssuer struct {
	signer Signer
	expiry time.Duration
	now    func() time.Time
}

func NewChallengeIssuer(signer Signer, expiry time.Duration, opts ...Option) *ChallengeIssuer {
	o := buildOptions(opts)
	return &ChallengeIssuer{
		signer: signer,
		expiry: expiry,
		now:    o.now,
	}
}

// Issue creates a challenge token with a fresh nonce.
func (c *ChallengeIssuer) Issue() (string, time.Time, error) {
	now := c.now()
	claims := ChallengeClaims{
		Use: challengeUse,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiry)),
		},
	}

	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, expiry and purpose of a challenge token.
func (c *ChallengeIssuer) Verify(raw string) (*ChallengeClaims, error) {
	claims := &ChallengeClaims{}
	if err := parse(c.signer, raw, claims, c.now); err != nil {
		return nil, err
	}
	if claims.Use != challengeUse || claims.ID == "" {
		return nil, errors.Wrap(ErrInvalidToken, "not a challenge token")
	}
	return claims, nil
}

// ExpiryOf decodes the embedded expiry WITHOUT verifying the signature. Only
// use it on tokens that were verified earlier.
func ExpiryOf(raw string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.Wrap(ErrInvalidToken, "missing exp claim")
	}
	return claims.ExpiresAt.Time, nil
}
