package token

import (
	"time"

	"github.com/jrsteele09/go-ordering-server/internal/config"
	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/pkg/errors"
)

var (
	ErrInvalidToken = apperrors.ErrInvalidToken
	ErrTokenExpired = apperrors.ErrTokenExpired
)

// NowTimeFunc returns the current time. It can be overridden per manager with WithClock.
var NowTimeFunc = time.Now

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Manager owns the two token issuers. Each has its own signer so an artifact
// from one trust domain can never verify in the other.
type Manager struct {
	Access    *AccessIssuer
	Challenge *ChallengeIssuer
}

// NewManager builds both issuers from config. The secrets must be set and distinct.
func NewManager(cfg config.TokenConfig, opts ...Option) (*Manager, error) {
	accessSecret := cfg.GetAccessTokenSecret()
	challengeSecret := cfg.GetChallengeTokenSecret()
	if accessSecret == "" || challengeSecret == "" {
		return nil, errors.New("[NewManager] token secrets must not be empty")
	}
	if accessSecret == challengeSecret {
		return nil, errors.New("[NewManager] access and challenge token secrets must differ")
	}
	if cfg.GetAccessTokenExpiry() <= 0 || cfg.GetChallengeTokenExpiry() <= 0 {
		return nil, errors.New("[NewManager] token expiries must be positive")
	}

	return &Manager{
		Access:    NewAccessIssuer(NewHMACSigner(accessSecret), cfg.GetAccessTokenExpiry(), opts...),
		Challenge: NewChallengeIssuer(NewHMACSigner(challengeSecret), cfg.GetChallengeTokenExpiry(), opts...),
	}, nil
}

func buildOptions(opts []Option) options {
	o := options{now: NowTimeFunc}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
