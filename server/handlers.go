package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
)

const contentTypeJSON = "application/json; charset=utf-8"

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

const healthCheckTimeout = 2 * time.Second

// Public error messages. Internal detail never reaches the client.
const (
	msgInternal         = "internal server error"
	msgUnauthorized     = "unauthorized"
	msgIdentityRequired = "authentication required"
	msgForbidden        = "forbidden"
	msgAdminOnly        = "access denied, admins only"
	msgNotFound         = "not found"
	msgDuplicate        = "email or phone number already registered"
	msgMalformedBody    = "malformed request body"
	msgUnknownEndpoint  = "unknown endpoint"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps err onto a status code and a public message. Unclassified
// errors are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFromError(err)
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSONError(w, status, message)
}

func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrMissingField), errors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrDuplicate):
		return http.StatusBadRequest, msgDuplicate
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, apperrors.ErrInvalidCredentials.Error()
	case errors.Is(err, apperrors.ErrUnauthorized),
		errors.Is(err, apperrors.ErrInvalidToken),
		errors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Wrapf(apperrors.ErrInvalidInput, "empty request body")
		}
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "%s", msgMalformedBody)
	}
	return nil
}

// UnknownEndpointHandler answers every unmatched route.
func (s *Server) UnknownEndpointHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, msgUnknownEndpoint)
	}
}

func (s *Server) LivezHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthzHandler runs every registered dependency check. Any failure turns
// the response into a 503.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(s.checks))
		for name := range s.checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		status := http.StatusOK
		for _, name := range names {
			if err := s.checks[name](ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("check", name).Msg("health check failed")
				resp.Checks[name] = fmt.Sprintf("unavailable: %v", err)
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, status, resp)
	}
}
