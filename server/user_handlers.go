package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-ordering-server/internal/errors"
	"github.com/jrsteele09/go-ordering-server/internal/utils"
	"github.com/jrsteele09/go-ordering-server/users"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// userRequest is the body of register and update calls. Pointer fields
// distinguish "not sent" from a zero value.
type userRequest struct {
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	PhoneNumber     string  `json:"phoneNumber"`
	Location        string  `json:"location"`
	Password        string  `json:"password"`
	UserType        *string `json:"userType"`
	Status          *string `json:"status"`
	HasNotification *bool   `json:"hasNotification"`
	HasNotice       *bool   `json:"hasNotice"`
}

func (req *userRequest) validateRegistration() error {
	var missing []string
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		missing = append(missing, "phoneNumber")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return apperrors.Wrapf(apperrors.ErrMissingField, "%s", strings.Join(missing, ", "))
	}
	return nil
}

func parseStatus(s string) (users.Status, error) {
	switch users.Status(s) {
	case users.StatusActive, users.StatusInactive:
		return users.Status(s), nil
	default:
		return "", apperrors.Wrapf(apperrors.ErrInvalidInput, "status must be %q or %q", users.StatusActive, users.StatusInactive)
	}
}

// RegisterUserHandler creates a customer account. Only an admin caller may
// choose the role.
func (s *Server) RegisterUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := req.validateRegistration(); err != nil {
			writeError(w, r, err)
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}

		user := &users.User{
			ID:           uuid.NewString(),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        strings.TrimSpace(req.Email),
			PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
			Location:     req.Location,
			PasswordHash: hash,
		}
		if UserFromContext(r.Context()).IsAdmin() {
			user.UserType = users.ParseUserType(utils.Value(req.UserType))
		}
		user.HasNotification = utils.Value(req.HasNotification)
		user.HasNotice = utils.Value(req.HasNotice)
		user.ApplyDefaults()

		if err := s.users.Create(r.Context(), user); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

// ListUsersHandler pages through all users. Admin only.
func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, r, err)
			return
		}
		limit, err := queryInt(r, "limit", defaultListLimit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if limit <= 0 || limit > maxListLimit {
			limit = defaultListLimit
		}

		list, err := s.users.List(r.Context(), offset, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if list == nil {
			list = []*users.User{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GetUserHandler returns one user to that user or an admin.
func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !selfOrAdmin(UserFromContext(r.Context()), id) {
			writeJSONError(w, http.StatusForbidden, msgForbidden)
			return
		}

		user, err := s.users.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// UpdateUserHandler applies the sent fields to a user. Only an admin may change
// the role; an unrecognised role becomes customer.
func (s *Server) UpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		caller := UserFromContext(r.Context())
		if !selfOrAdmin(caller, id) {
			writeJSONError(w, http.StatusForbidden, msgForbidden)
			return
		}

		var req userRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := s.users.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if err := applyUpdate(user, &req, caller.IsAdmin()); err != nil {
			writeError(w, r, err)
			return
		}

		if err := s.users.Update(r.Context(), user); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func applyUpdate(user *users.User, req *userRequest, byAdmin bool) error {
	if byAdmin && req.UserType != nil && *req.UserType != "" {
		user.UserType = users.ParseUserType(*req.UserType)
	}
	if req.Password != "" {
		hash, err := users.HashPassword(req.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
	}
	if req.Status != nil {
		status, err := parseStatus(*req.Status)
		if err != nil {
			return err
		}
		user.Status = status
	}

	user.FirstName = valueOr(req.FirstName, user.FirstName)
	user.LastName = valueOr(req.LastName, user.LastName)
	user.Email = valueOr(strings.TrimSpace(req.Email), user.Email)
	user.PhoneNumber = valueOr(strings.TrimSpace(req.PhoneNumber), user.PhoneNumber)
	user.Location = valueOr(req.Location, user.Location)
	user.HasNotification = utils.ValueOr(req.HasNotification, user.HasNotification)
	user.HasNotice = utils.ValueOr(req.HasNotice, user.HasNotice)
	return nil
}

// DeleteUserHandler removes a user. Admin only.
func (s *Server) DeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.users.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidInput, "%s must be a non-negative integer", name)
	}
	return n, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
