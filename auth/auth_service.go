package auth

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/jrsteele09/go-ordering-server/token"
	"github.com/jrsteele09/go-ordering-server/token/replay"
	"github.com/jrsteele09/go-ordering-server/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// dummyHash is compared against when the identifier matches no user, so an
// unknown account costs the same bcrypt work as a wrong password.
var (
	dummyHash     string
	dummyHashOnce sync.Once
)

func getDummyHash() string {
	dummyHashOnce.Do(func() {
		h, err := users.HashPassword("not-a-real-password")
		if err != nil {
			log.Error().Err(err).Msg("failed to build dummy password hash")
		}
		dummyHash = h
	})
	return dummyHash
}

// Service implements login, challenge issuance, access-token refresh and
// identity resolution.
type Service struct {
	users  users.UserRepo
	tokens *token.Manager
	guard  replay.Guard
}

// NewService initializes a Service with its required dependencies.
func NewService(userRepo users.UserRepo, tokens *token.Manager, guard replay.Guard) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] users repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if guard == nil {
		return nil, errors.New("[NewService] replay guard is required")
	}
	return &Service{
		users:  userRepo,
		tokens: tokens,
		guard:  guard,
	}, nil
}

// Login authenticates identifier (email or phone number) and password and
// returns a fresh access token with the caller's profile. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, params LoginParameters) (*LoginResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByIdentifier(ctx, params.GetIdentifier())
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		users.CheckPasswordHash(params.Password, getDummyHash())
		return nil, apperrors.ErrInvalidCredentials
	case err != nil:
		return nil, errors.Wrap(err, "[Login] user lookup")
	}

	if !user.CheckPassword(params.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	signed, _, err := s.tokens.Access.Issue(user)
	if err != nil {
		return nil, errors.Wrap(err, "[Login] issue access token")
	}
	return newLoginResult(signed, user), nil
}

// IssueChallenge mints a challenge token. The replay guard is untouched.
func (s *Service) IssueChallenge(_ context.Context) (string, error) {
	signed, _, err := s.tokens.Challenge.Issue()
	if err != nil {
		return "", errors.Wrap(err, "[IssueChallenge] issue challenge token")
	}
	return signed, nil
}

// Refresh redeems challenge for a new access token bound to user. The guard is
// checked before verification and only written after verification succeeds;
// every rejection wraps ErrForbidden.
func (s *Service) Refresh(ctx context.Context, user *users.User, challenge string) (string, error) {
	if user == nil {
		return "", ErrIdentityRequired
	}
	if challenge == "" {
		return "", ErrChallengeRequired
	}

	used, err := s.guard.Contains(ctx, challenge)
	if err != nil {
		log.Error().Err(err).Msg("replay guard lookup failed")
		return "", ErrChallengeInvalid
	}
	if used {
		return "", ErrChallengeReused
	}

	claims, err := s.tokens.Challenge.Verify(challenge)
	if err != nil {
		return "", errors.Wrap(ErrChallengeInvalid, err.Error())
	}

	if err := s.guard.Consume(ctx, challenge, claims.ExpiresAt.Time); err != nil {
		if errors.Is(err, replay.ErrReplayed) {
			return "", ErrChallengeReused
		}
		log.Error().Err(err).Msg("replay guard write failed")
		return "", ErrChallengeInvalid
	}

	signed, _, err := s.tokens.Access.Issue(user)
	if err != nil {
		return "", errors.Wrap(err, "[Refresh] issue access token")
	}
	return signed, nil
}

// ResolveIdentity verifies an access token and loads the user it names.
func (s *Service) ResolveIdentity(ctx context.Context, accessToken string) (*users.User, error) {
	claims, err := s.tokens.Access.Verify(accessToken)
	if err != nil {
		return nil, errors.Wrap(ErrAccessTokenDenied, err.Error())
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		return nil, errors.Wrap(ErrAccessTokenDenied, "unknown subject")
	case err != nil:
		return nil, errors.Wrap(err, "[ResolveIdentity] user lookup")
	}
	return user, nil
}

