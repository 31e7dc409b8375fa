package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-ordering-server/auth"
	"github.com/jrsteele09/go-ordering-server/internal/config"
	"github.com/jrsteele09/go-ordering-server/internal/metrics"
	"github.com/jrsteele09/go-ordering-server/server"
	"github.com/jrsteele09/go-ordering-server/token"
	"github.com/jrsteele09/go-ordering-server/token/replay"
	"github.com/jrsteele09/go-ordering-server/users"
	fakeuserrepo "github.com/jrsteele09/go-ordering-server/users/repofake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	customerEmail    = "a@x.com"
	customerPassword = "p"
	adminEmail       = "admin@x.com"
	adminPassword    = "admin-pass"
	allowedOrigin    = "http://localhost:5173"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	server   *server.Server
	clock    *testClock
	userRepo *fakeuserrepo.FakeUserRepo
	metrics  *metrics.Recorder
	customer *users.User
	admin    *users.User
}

func testConfig() *config.Settings {
	return &config.Settings{
		EnvVars: config.EnvVars{Env: "TEST", RequestTimeout: 5 * time.Second},
		Cors:    config.Cors{Origins: []string{allowedOrigin}},
		Tokens: config.Tokens{
			AccessSecret:    "access-secret",
			ChallengeSecret: "challenge-secret",
			AccessExpiry:    time.Hour,
			ChallengeExpiry: 15 * time.Minute,
			SweepInterval:   time.Hour,
		},
	}
}

func seedUser(t *testing.T, repo users.UserRepo, id, email, password string, userType users.UserType) *users.User {
	t.Helper()
	hash, err := users.HashPassword(password)
	require.NoError(t, err)
	u := &users.User{
		ID:           id,
		FirstName:    "First-" + id,
		LastName:     "Last-" + id,
		Email:        email,
		UserType:     userType,
		Status:       users.StatusActive,
		PasswordHash: hash,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func setupTestFixture(t *testing.T, opts ...server.Option) *testFixture {
	t.Helper()

	cfg := testConfig()
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	tokens, err := token.NewManager(cfg, token.WithClock(clock.Now))
	require.NoError(t, err)

	ur := fakeuserrepo.NewFakeUserRepo()
	customer := seedUser(t, ur, "cust-1", customerEmail, customerPassword, users.UserTypeCustomer)
	admin := seedUser(t, ur, "admin-1", adminEmail, adminPassword, users.UserTypeAdmin)

	service, err := auth.NewService(ur, tokens, replay.NewMemoryGuard(token.ExpiryOf))
	require.NoError(t, err)

	rec := metrics.NewRecorder()
	s, err := server.New(cfg, service, ur, append([]server.Option{server.WithMetrics(rec)}, opts...)...)
	require.NoError(t, err)

	return &testFixture{
		server:   s,
		clock:    clock,
		userRepo: ur,
		metrics:  rec,
		customer: customer,
		admin:    admin,
	}
}

type request struct {
	method  string
	path    string
	token   string
	headers map[string]string
	body    any
}

func (f *testFixture) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func (f *testFixture) login(t *testing.T, identifier, password string) string {
	t.Helper()
	rec := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: map[string]string{
		"identifier": identifier,
		"password":   password,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[auth.LoginResult](t, rec).Token
}

func (f *testFixture) challenge(t *testing.T, accessToken string) string {
	t.Helper()
	rec := f.do(t, request{method: http.MethodGet, path: server.RouteChallenge, token: accessToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]string](t, rec)["challengeToken"]
}

func (f *testFixture) refresh(t *testing.T, accessToken, challenge string) *httptest.ResponseRecorder {
	t.Helper()
	headers := map[string]string{}
	if challenge != "" {
		headers[server.HeaderChallengeToken] = challenge
	}
	return f.do(t, request{method: http.MethodPost, path: server.RouteRefresh, token: accessToken, headers: headers})
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := server.New(nil, nil, nil)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("success", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: map[string]string{
			"identifier": customerEmail,
			"password":   customerPassword,
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		body := decode[map[string]any](t, rec)
		for _, key := range []string{"token", "email", "firstName", "lastName", "userType", "state", "id"} {
			require.Contains(t, body, key)
		}
		require.NotContains(t, rec.Body.String(), "passwordHash")
		require.Equal(t, f.customer.ID, body["id"])
		require.Equal(t, "active", body["state"])
	})

	t.Run("legacy email field", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: map[string]string{
			"email":    customerEmail,
			"password": customerPassword,
		}})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: map[string]string{}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		msg := errorOf(t, rec)
		require.Contains(t, msg, "identifier")
		require.Contains(t, msg, "password")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: "{not json"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad credentials are indistinguishable", func(t *testing.T) {
		wrongPassword := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: map[string]string{
			"identifier": customerEmail,
			"password":   "wrong",
		}})
		unknownUser := f.do(t, request{method: http.MethodPost, path: server.RouteLogin, body: map[string]string{
			"identifier": "nobody@x.com",
			"password":   customerPassword,
		}})
		require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
		require.Equal(t, http.StatusUnauthorized, unknownUser.Code)
		require.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
		require.Equal(t, "invalid identifier or password", errorOf(t, wrongPassword))
	})

	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Logins.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Logins.WithLabelValues(metrics.OutcomeInvalid)))
}

func TestRefreshFlow(t *testing.T) {
	f := setupTestFixture(t)

	accessToken := f.login(t, customerEmail, customerPassword)
	challenge := f.challenge(t, accessToken)

	rec := f.refresh(t, accessToken, challenge)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newToken := decode[map[string]string](t, rec)["accessToken"]
	require.NotEmpty(t, newToken)

	// the new token identifies the same user
	rec = f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.customer.ID, token: newToken})
	require.Equal(t, http.StatusOK, rec.Code)

	// the same challenge a second time is a replay
	rec = f.refresh(t, accessToken, challenge)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "challenge token has already been used", errorOf(t, rec))

	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Refreshes.WithLabelValues(metrics.OutcomeReplayed)))
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChallengesIssued))
}

func TestRefreshRejections(t *testing.T) {
	f := setupTestFixture(t)
	accessToken := f.login(t, customerEmail, customerPassword)

	t.Run("missing challenge", func(t *testing.T) {
		rec := f.refresh(t, accessToken, "")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "challenge token is required", errorOf(t, rec))
	})

	t.Run("forged challenge", func(t *testing.T) {
		rec := f.refresh(t, accessToken, "garbage")
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("access token as challenge", func(t *testing.T) {
		rec := f.refresh(t, accessToken, accessToken)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("expired challenge", func(t *testing.T) {
		challenge := f.challenge(t, accessToken)
		f.clock.Advance(15*time.Minute + time.Second)
		rec := f.refresh(t, accessToken, challenge)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no identity", func(t *testing.T) {
		challenge := f.challenge(t, accessToken)
		rec := f.refresh(t, "", challenge)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// the challenge was not consumed
		rec = f.refresh(t, accessToken, challenge)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestIdentityMiddleware(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("no token reaches the handler", func(t *testing.T) {
		// the handler, not the middleware, refuses anonymous access with 403
		rec := f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.customer.ID})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.customer.ID, token: "garbage"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "unauthorized", errorOf(t, rec))
	})

	t.Run("literal null token", func(t *testing.T) {
		for _, literal := range []string{"null", "undefined"} {
			rec := f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.customer.ID, token: literal})
			require.Equal(t, http.StatusUnauthorized, rec.Code, literal)
			require.Equal(t, "unauthorized", errorOf(t, rec))
		}
	})

	t.Run("empty bearer counts as no token", func(t *testing.T) {
		rec := f.do(t, request{
			method:  http.MethodGet,
			path:    "/api/users/" + f.customer.ID,
			headers: map[string]string{"Authorization": "Bearer "},
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("challenge endpoint requires identity", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodGet, path: server.RouteChallenge})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-bearer scheme counts as no token", func(t *testing.T) {
		rec := f.do(t, request{
			method:  http.MethodGet,
			path:    "/api/users/" + f.customer.ID,
			headers: map[string]string{"Authorization": "Basic Zm9vOmJhcg=="},
		})
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("deleted user", func(t *testing.T) {
		ghost := seedUser(t, f.userRepo, "ghost", "ghost@x.com", "pw", users.UserTypeCustomer)
		accessToken := f.login(t, ghost.Email, "pw")
		require.NoError(t, f.userRepo.Delete(context.Background(), ghost.ID))

		rec := f.do(t, request{method: http.MethodGet, path: server.RouteChallenge, token: accessToken})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired access token", func(t *testing.T) {
		accessToken := f.login(t, customerEmail, customerPassword)
		f.clock.Advance(time.Hour + time.Second)
		rec := f.do(t, request{method: http.MethodGet, path: server.RouteChallenge, token: accessToken})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserRoutes(t *testing.T) {
	f := setupTestFixture(t)
	customerToken := f.login(t, customerEmail, customerPassword)
	adminToken := f.login(t, adminEmail, adminPassword)

	var created users.User
	t.Run("register", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteUsers, body: map[string]any{
			"firstName":   "New",
			"email":       "new@x.com",
			"phoneNumber": "0400000001",
			"password":    "pw",
			"userType":    "admin",
		}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created = decode[users.User](t, rec)
		require.NotEmpty(t, created.ID)
		require.Equal(t, users.UserTypeCustomer, created.UserType, "anonymous callers cannot pick a role")
		require.Equal(t, users.StatusActive, created.Status)

		f.login(t, "new@x.com", "pw")
	})

	t.Run("register duplicate", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteUsers, body: map[string]any{
			"email":       customerEmail,
			"phoneNumber": "0400000002",
			"password":    "pw",
		}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "email or phone number already registered", errorOf(t, rec))
	})

	t.Run("register missing fields", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteUsers, body: map[string]any{"firstName": "x"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, errorOf(t, rec), "email")
		require.Contains(t, errorOf(t, rec), "phoneNumber")
		require.Contains(t, errorOf(t, rec), "password")
	})

	t.Run("register requires a phone number", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: server.RouteUsers, body: map[string]any{
			"email":    "nophone@x.com",
			"password": "pw",
		}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "phoneNumber: missing required field", errorOf(t, rec))
	})

	t.Run("list is admin only", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodGet, path: server.RouteUsers, token: customerToken})
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, request{method: http.MethodGet, path: server.RouteUsers})
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, request{method: http.MethodGet, path: server.RouteUsers, token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, decode[[]users.User](t, rec), 3)

		rec = f.do(t, request{method: http.MethodGet, path: server.RouteUsers + "?limit=abc", token: adminToken})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get self or admin", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.customer.ID, token: customerToken})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.admin.ID, token: customerToken})
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, request{method: http.MethodGet, path: "/api/users/" + f.customer.ID, token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(t, request{method: http.MethodGet, path: "/api/users/missing", token: adminToken})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("self update cannot change role", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPut, path: "/api/users/" + f.customer.ID, token: customerToken, body: map[string]any{
			"location": "Leeds",
			"userType": "admin",
		}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[users.User](t, rec)
		require.Equal(t, "Leeds", updated.Location)
		require.Equal(t, users.UserTypeCustomer, updated.UserType)
		require.Equal(t, f.customer.FirstName, updated.FirstName)
	})

	t.Run("admin update coerces unknown role", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPut, path: "/api/users/" + created.ID, token: adminToken, body: map[string]any{
			"userType": "superuser",
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, users.UserTypeCustomer, decode[users.User](t, rec).UserType)

		rec = f.do(t, request{method: http.MethodPut, path: "/api/users/" + created.ID, token: adminToken, body: map[string]any{
			"userType": "admin",
		}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, users.UserTypeAdmin, decode[users.User](t, rec).UserType)
	})

	t.Run("invalid status", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPut, path: "/api/users/" + f.customer.ID, token: customerToken, body: map[string]any{
			"status": "banned",
		}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete is admin only", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodDelete, path: "/api/users/" + created.ID, token: customerToken})
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = f.do(t, request{method: http.MethodDelete, path: "/api/users/" + created.ID, token: adminToken})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(t, request{method: http.MethodDelete, path: "/api/users/" + created.ID, token: adminToken})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUnknownEndpoint(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.do(t, request{method: http.MethodGet, path: "/api/nothing-here"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "unknown endpoint", errorOf(t, rec))
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	f.server.RegisterRouteFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := f.do(t, request{method: http.MethodGet, path: "/boom"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal server error", errorOf(t, rec))
}

func TestCorsMiddleware(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, request{method: http.MethodOptions, path: server.RouteRefresh, headers: map[string]string{
		"Origin": allowedOrigin,
	}})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), server.HeaderChallengeToken)

	rec = f.do(t, request{method: http.MethodOptions, path: server.RouteRefresh, headers: map[string]string{
		"Origin": "http://evil.example",
	}})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOperationalRoutes(t *testing.T) {
	failing := errors.New("connection refused")
	f := setupTestFixture(t,
		server.WithHealthCheck("users", func(context.Context) error { return nil }),
		server.WithHealthCheck("replay", func(context.Context) error { return failing }),
	)

	rec := f.do(t, request{method: http.MethodGet, path: server.RouteLivez})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = f.do(t, request{method: http.MethodGet, path: server.RouteHealthz})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	require.Equal(t, "unavailable", body["status"])
	require.Equal(t, "ok", body["checks"].(map[string]any)["users"])

	f.login(t, customerEmail, customerPassword)
	rec = f.do(t, request{method: http.MethodGet, path: server.RouteMetrics})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `ordering_auth_logins_total{outcome="success"} 1`)
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()

	password, err := server.BootstrapAdmin(ctx, repo, "root@x.com", "")
	require.NoError(t, err)
	require.NotEmpty(t, password)

	admin, err := repo.GetByEmail(ctx, "root@x.com")
	require.NoError(t, err)
	require.True(t, admin.IsAdmin())
	require.True(t, admin.CheckPassword(password))

	again, err := server.BootstrapAdmin(ctx, repo, "root@x.com", "")
	require.NoError(t, err)
	require.Empty(t, again, "existing admin is left alone")

	fixed, err := server.BootstrapAdmin(ctx, repo, "other@x.com", "fixed")
	require.NoError(t, err)
	require.Equal(t, "fixed", fixed)
}
