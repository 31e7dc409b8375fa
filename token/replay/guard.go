package replay

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrReplayed is returned by Consume when the token was already redeemed.
var ErrReplayed = errors.New("challenge token already used")

// Guard tracks redeemed challenge tokens. A token present in the guard must
// never be accepted again.
type Guard interface {
	// Contains reports whether token was already redeemed.
	Contains(ctx context.Context, token string) (bool, error)

	// Consume atomically marks token as redeemed. It returns ErrReplayed if
	// another caller consumed it first. expiresAt is the token's own expiry.
	Consume(ctx context.Context, token string, expiresAt time.Time) error

	// Sweep discards entries whose embedded expiry is before now and returns
	// how many were removed. Entries that have not expired are never removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// ExpiryDecoder extracts a token's embedded expiry without verifying it.
type ExpiryDecoder func(token string) (time.Time, error)
