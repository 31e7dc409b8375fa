package auth

import (
	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
)

var (
	ErrChallengeRequired = apperrors.Wrapf(apperrors.ErrForbidden, "challenge token required")
	ErrChallengeReused   = apperrors.Wrapf(apperrors.ErrForbidden, "challenge token already used")
	ErrChallengeInvalid  = apperrors.Wrapf(apperrors.ErrForbidden, "challenge token invalid")
	ErrIdentityRequired  = apperrors.Wrapf(apperrors.ErrUnauthorized, "identity required")
	ErrAccessTokenDenied = apperrors.Wrapf(apperrors.ErrUnauthorized, "access token rejected")
)
