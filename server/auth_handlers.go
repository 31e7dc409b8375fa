package server

import (
	"net/http"

	"github.com/jrsteele09/go-ordering-server/auth"
	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/jrsteele09/go-ordering-server/internal/metrics"
	"github.com/pkg/errors"
)

type challengeResponse struct {
	ChallengeToken string `json:"challengeToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// LoginHandler exchanges {identifier, password} for an access token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params auth.LoginParameters
		if err := decodeJSON(w, r, &params); err != nil {
			s.metrics.Logins.WithLabelValues(metrics.OutcomeRejected).Inc()
			writeError(w, r, err)
			return
		}

		result, err := s.auth.Login(r.Context(), params)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				s.metrics.Logins.WithLabelValues(metrics.OutcomeInvalid).Inc()
			case errors.Is(err, apperrors.ErrMissingField):
				s.metrics.Logins.WithLabelValues(metrics.OutcomeRejected).Inc()
			default:
				s.metrics.Logins.WithLabelValues(metrics.OutcomeError).Inc()
			}
			writeError(w, r, err)
			return
		}

		s.metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
		noStore(w)
		writeJSON(w, http.StatusOK, result)
	}
}

// ChallengeHandler issues a challenge token to an identified caller.
func (s *Server) ChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		challenge, err := s.auth.IssueChallenge(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.metrics.ChallengesIssued.Inc()
		noStore(w)
		writeJSON(w, http.StatusOK, challengeResponse{ChallengeToken: challenge})
	}
}

// RefreshHandler redeems the X-Challenge-Token header for a new access token.
// Every challenge failure is a 403.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		challenge := r.Header.Get(HeaderChallengeToken)

		accessToken, err := s.auth.Refresh(r.Context(), user, challenge)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrChallengeRequired):
				s.metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
				writeJSONError(w, http.StatusForbidden, "challenge token is required")
			case errors.Is(err, auth.ErrChallengeReused):
				s.metrics.Refreshes.WithLabelValues(metrics.OutcomeReplayed).Inc()
				writeJSONError(w, http.StatusForbidden, "challenge token has already been used")
			case errors.Is(err, apperrors.ErrForbidden):
				s.metrics.Refreshes.WithLabelValues(metrics.OutcomeInvalid).Inc()
				writeJSONError(w, http.StatusForbidden, msgForbidden)
			default:
				s.metrics.Refreshes.WithLabelValues(metrics.OutcomeError).Inc()
				writeError(w, r, err)
			}
			return
		}

		s.metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
		noStore(w)
		writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
	}
}
