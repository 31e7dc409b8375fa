package server

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/jrsteele09/go-ordering-server/internal/metrics"
	"github.com/jrsteele09/go-ordering-server/users"
	"github.com/pkg/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUser stores the resolved *users.User
const ContextKeyUser ContextKey = "user"

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// UserFromContext returns the caller resolved by IdentityMiddleware, or nil
// when the request carried no bearer token.
func UserFromContext(ctx context.Context) *users.User {
	user, _ := ctx.Value(ContextKeyUser).(*users.User)
	return user
}

// bearerToken extracts the token from "Authorization: Bearer <token>". Any
// other shape counts as no token.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// IdentityMiddleware resolves the bearer token, if any, to a user. A missing
// token is not an error here; an invalid one, or one naming an unknown user,
// is answered with 401 before the handler runs.
func (s *Server) IdentityMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.metrics.IdentityResolution.WithLabelValues(metrics.OutcomeAnonymous).Inc()
			next(w, r)
			return
		}

		user, err := s.auth.ResolveIdentity(r.Context(), token)
		if err != nil {
			if errors.Is(err, apperrors.ErrUnauthorized) {
				s.metrics.IdentityResolution.WithLabelValues(metrics.OutcomeRejected).Inc()
				writeJSONError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			s.metrics.IdentityResolution.WithLabelValues(metrics.OutcomeError).Inc()
			writeError(w, r, err)
			return
		}

		s.metrics.IdentityResolution.WithLabelValues(metrics.OutcomeSuccess).Inc()
		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// RequireIdentity rejects requests without a resolved user with 401.
// Chain it after IdentityMiddleware.
func (s *Server) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			writeJSONError(w, http.StatusUnauthorized, msgIdentityRequired)
			return
		}
		next(w, r)
	}
}

// RequireAdmin rejects anyone but an admin with 403.
func (s *Server) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !UserFromContext(r.Context()).IsAdmin() {
			writeJSONError(w, http.StatusForbidden, msgAdminOnly)
			return
		}
		next(w, r)
	}
}

// selfOrAdmin reports whether caller may act on the account with the given id.
func selfOrAdmin(caller *users.User, id string) bool {
	if caller == nil {
		return false
	}
	return caller.IsAdmin() || caller.ID == id
}
