package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	pathLogin     = "/api/login"
	pathChallenge = "/api/tokens/cha"
	pathRefresh   = "/api/tokens/ref"

	headerChallengeToken = "X-Challenge-Token"

	defaultRequestTimeout = 10 * time.Second
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Profile is the non-sensitive part of a login response.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserType  string `json:"userType"`
	State     string `json:"state"`
}

type loginResponse struct {
	Token string `json:"token"`
	Profile
}

// API talks to the ordering server's auth endpoints.
type API struct {
	baseURL string
	http    *http.Client
}

type APIOption func(*API)

// WithHTTPClient replaces the underlying client. Its Timeout bounds each call.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) {
		a.http = c
	}
}

// WithRequestTimeout bounds every call made through the API.
func WithRequestTimeout(d time.Duration) APIOption {
	return func(a *API) {
		a.http.Timeout = d
	}
}

func NewAPI(baseURL string, opts ...APIOption) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BaseURL returns the server root the API was built with.
func (a *API) BaseURL() string {
	return a.baseURL
}

// Login exchanges credentials for an access token and the caller's profile.
func (a *API) Login(ctx context.Context, identifier, password string) (string, *Profile, error) {
	body := map[string]string{"identifier": identifier, "password": password}
	var resp loginResponse
	if err := a.do(ctx, http.MethodPost, pathLogin, "", nil, body, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" {
		return "", nil, errors.New("login response carried no token")
	}
	return resp.Token, &resp.Profile, nil
}

// Challenge requests a single-use challenge token.
func (a *API) Challenge(ctx context.Context, accessToken string) (string, error) {
	var resp struct {
		ChallengeToken string `json:"challengeToken"`
	}
	if err := a.do(ctx, http.MethodGet, pathChallenge, accessToken, nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.ChallengeToken, nil
}

// Refresh redeems a challenge token for a new access token.
func (a *API) Refresh(ctx context.Context, accessToken, challenge string) (string, error) {
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	headers := map[string]string{headerChallengeToken: challenge}
	if err := a.do(ctx, http.MethodPost, pathRefresh, accessToken, headers, nil, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

func (a *API) do(ctx context.Context, method, path, accessToken string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "%s %s: decode response", method, path)
	}
	return nil
}
