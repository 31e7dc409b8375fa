package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultRefreshInterval  = 40 * time.Minute
	DefaultRetryDelay       = 5 * time.Minute
	DefaultSessionTTL       = time.Hour
	DefaultWatchdogInterval = time.Minute
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	// errSessionEnded means the session a task belonged to was logged out or replaced.
	errSessionEnded = errors.New("session ended")
)

// LogoutReason says why a session ended.
type LogoutReason string

const (
	LogoutRequested LogoutReason = "requested"
	LogoutExpired   LogoutReason = "expired"
)

// Orchestrator keeps a client session alive. After login it runs two
// independent tasks: a one-shot refresh timer, rearmed after every attempt,
// and a watchdog that logs the session out once it is older than the session
// TTL. Logout cancels both tasks and clears the store under one lock, and a
// refresh that completes afterwards is discarded.
type Orchestrator struct {
	api   *API
	store SessionStore

	refreshInterval  time.Duration
	retryDelay       time.Duration
	sessionTTL       time.Duration
	watchdogInterval time.Duration
	now              func() time.Time
	onLogout         func(LogoutReason)

	mu         sync.Mutex
	session    *Session
	generation uint64
	cancel     context.CancelFunc
	rearm      chan struct{}
	tasks      sync.WaitGroup
}

type Option func(*Orchestrator)

func WithRefreshInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.refreshInterval = d
	}
}

// WithRetryDelay sets how soon a failed refresh is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.retryDelay = d
	}
}

func WithSessionTTL(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.sessionTTL = d
	}
}

// WithWatchdogInterval sets how often the session age is checked.
func WithWatchdogInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.watchdogInterval = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// OnLogout registers a callback run after every logout, forced or requested.
// A forced logout runs it once the session's tasks have exited, so the
// callback may call Login, Logout or Close.
func OnLogout(fn func(LogoutReason)) Option {
	return func(o *Orchestrator) {
		o.onLogout = fn
	}
}

func NewOrchestrator(api *API, store SessionStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:              api,
		store:            store,
		refreshInterval:  DefaultRefreshInterval,
		retryDelay:       DefaultRetryDelay,
		sessionTTL:       DefaultSessionTTL,
		watchdogInterval: DefaultWatchdogInterval,
		now:              time.Now,
		onLogout:         func(LogoutReason) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Login authenticates, stores the new session and starts both tasks.
func (o *Orchestrator) Login(ctx context.Context, identifier, password string) (*Profile, error) {
	accessToken, profile, err := o.api.Login(ctx, identifier, password)
	if err != nil {
		return nil, err
	}

	session := &Session{
		AccessToken:    accessToken,
		User:           *profile,
		LoginTimestamp: o.now(),
	}

	o.mu.Lock()
	o.stopTasksLocked()
	if err := o.store.Save(session); err != nil {
		o.mu.Unlock()
		return nil, errors.Wrap(err, "save session")
	}
	o.session = session
	o.startTasksLocked()
	o.mu.Unlock()

	return profile, nil
}

// Restore resumes a stored session. A session older than the TTL is cleared
// instead and Restore reports false.
func (o *Orchestrator) Restore() (bool, error) {
	stored, err := o.store.Load()
	if errors.Is(err, ErrNoSession) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.expired(stored) {
		log.Info().Msg("stored session expired, discarding")
		return false, o.store.Clear()
	}
	o.stopTasksLocked()
	o.session = stored
	o.startTasksLocked()
	return true, nil
}

// Logout cancels both tasks, then clears the stored session. It returns once
// the tasks have exited.
func (o *Orchestrator) Logout() error {
	o.mu.Lock()
	err := o.logoutLocked()
	o.mu.Unlock()

	o.tasks.Wait()
	o.onLogout(LogoutRequested)
	return err
}

// Close stops both tasks but keeps the stored session, so it can be restored later.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.stopTasksLocked()
	o.session = nil
	o.mu.Unlock()

	o.tasks.Wait()
}

// Session returns a copy of the current session, if any.
func (o *Orchestrator) Session() (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, false
	}
	s := *o.session
	return &s, true
}

// AccessToken returns the current access token.
func (o *Orchestrator) AccessToken() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return "", ErrNotLoggedIn
	}
	return o.session.AccessToken, nil
}

// Token implements oauth2.TokenSource over the current session.
func (o *Orchestrator) Token() (*oauth2.Token, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		return nil, ErrNotLoggedIn
	}
	return &oauth2.Token{
		AccessToken: o.session.AccessToken,
		TokenType:   "Bearer",
		Expiry:      o.session.LoginTimestamp.Add(o.sessionTTL),
	}, nil
}

// TokenSource returns the orchestrator as an oauth2.TokenSource.
func (o *Orchestrator) TokenSource() oauth2.TokenSource {
	return o
}

// HTTPClient returns a client that sends the current access token on every
// request. The token is read per request, so refreshes take effect at once.
func (o *Orchestrator) HTTPClient() *http.Client {
	return &http.Client{
		Timeout:   o.api.http.Timeout,
		Transport: &oauth2.Transport{Source: o, Base: o.api.http.Transport},
	}
}

// Refresh runs one challenge/refresh cycle immediately. On success the
// refresh timer restarts from now.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	gen := o.generation
	loggedIn := o.session != nil
	o.mu.Unlock()
	if !loggedIn {
		return ErrNotLoggedIn
	}
	if err := o.refreshOnce(ctx, gen); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generation == gen && o.rearm != nil {
		select {
		case o.rearm <- struct{}{}:
		default:
		}
	}
	return nil
}

func (o *Orchestrator) expired(s *Session) bool {
	return o.now().Sub(s.LoginTimestamp) > o.sessionTTL
}

// startTasksLocked launches the refresh timer and the watchdog for the
// current session. Callers hold o.mu.
func (o *Orchestrator) startTasksLocked() {
	o.generation++
	gen := o.generation
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	rearm := make(chan struct{}, 1)
	o.rearm = rearm

	o.tasks.Add(2)
	go func() {
		defer o.tasks.Done()
		o.refreshLoop(ctx, gen, rearm)
	}()
	go func() {
		expired := func() bool {
			defer o.tasks.Done()
			return o.watchdog(ctx, gen)
		}()
		if expired {
			o.onLogout(LogoutExpired)
		}
	}()
}

// stopTasksLocked cancels the running tasks and invalidates any refresh still
// in flight. Callers hold o.mu.
func (o *Orchestrator) stopTasksLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.rearm = nil
	o.generation++
}

func (o *Orchestrator) logoutLocked() error {
	o.stopTasksLocked()
	o.session = nil
	return o.store.Clear()
}

func (o *Orchestrator) refreshLoop(ctx context.Context, gen uint64, rearm <-chan struct{}) {
	timer := time.NewTimer(o.refreshInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rearm:
			timer.Reset(o.refreshInterval)
			continue
		case <-timer.C:
		}

		err := o.refreshOnce(ctx, gen)
		switch {
		case err == nil:
			timer.Reset(o.refreshInterval)
		case errors.Is(err, errSessionEnded), ctx.Err() != nil:
			return
		default:
			log.Warn().Err(err).Dur("retry_in", o.retryDelay).Msg("access token refresh failed")
			timer.Reset(o.retryDelay)
		}
	}
}

// refreshOnce requests a challenge and redeems it. The result is written only
// if the session of generation gen is still current.
func (o *Orchestrator) refreshOnce(ctx context.Context, gen uint64) error {
	o.mu.Lock()
	if o.session == nil || o.generation != gen {
		o.mu.Unlock()
		return errSessionEnded
	}
	accessToken := o.session.AccessToken
	o.mu.Unlock()

	challenge, err := o.api.Challenge(ctx, accessToken)
	if err != nil {
		return errors.Wrap(err, "request challenge")
	}
	newToken, err := o.api.Refresh(ctx, accessToken, challenge)
	if err != nil {
		return errors.Wrap(err, "redeem challenge")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil || o.generation != gen {
		return errSessionEnded
	}
	updated := *o.session
	updated.AccessToken = newToken
	updated.LoginTimestamp = o.now()
	if err := o.store.Save(&updated); err != nil {
		return errors.Wrap(err, "save session")
	}
	o.session = &updated
	log.Debug().Str("user", updated.User.Email).Msg("access token refreshed")
	return nil
}

// watchdog reports true when it logged the session out.
func (o *Orchestrator) watchdog(ctx context.Context, gen uint64) bool {
	ticker := time.NewTicker(o.watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		o.mu.Lock()
		if o.session == nil || o.generation != gen {
			o.mu.Unlock()
			return false
		}
		if !o.expired(o.session) {
			o.mu.Unlock()
			continue
		}
		log.Info().Str("user", o.session.User.Email).Msg("session expired, logging out")
		if err := o.logoutLocked(); err != nil {
			log.Err(err).Msg("failed to clear expired session")
		}
		o.mu.Unlock()
		return true
	}
}
