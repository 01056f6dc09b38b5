// Package session owns who is logged in and with what role. A Store is built
// per request over a State; every change to the token, the cached identity or
// the role cookie goes through one of its named operations.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fingrupo/fingrupo/internal/api"
	"github.com/fingrupo/fingrupo/internal/shared"
)

// DefaultRefreshInterval bounds how long a cached role is trusted.
const DefaultRefreshInterval = 5 * time.Minute

// Identity is a fully resolved user: profile and role are always set together.
type Identity struct {
	User api.Profile
	Role shared.Role
}

// Options tune a Store.
type Options struct {
	Logger          *slog.Logger
	RefreshInterval time.Duration
	Now             func() time.Time
}

// Store is the session state of one request.
type Store struct {
	base            *api.Client
	state           State
	logger          *slog.Logger
	refreshInterval time.Duration
	now             func() time.Time

	mu    sync.RWMutex
	user  *api.Profile
	role  shared.Role
	ready bool
}

// New constructs a Store. Call Initialize before reading it.
func New(base *api.Client, state State, opts Options) *Store {
	s := &Store{
		base:            base,
		state:           state,
		logger:          opts.Logger,
		refreshInterval: opts.RefreshInterval,
		now:             opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.refreshInterval <= 0 {
		s.refreshInterval = DefaultRefreshInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Initialize restores the session from State. It never fails: any problem
// with the stored token ends in a clean logged out store.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	token := s.state.Token()
	snap, cached := s.state.Snapshot()
	if token == "" {
		s.clearLocked()
		s.mu.Unlock()
		return
	}
	if cached && snap.Role.Valid() && s.now().Sub(snap.ResolvedAt) < s.refreshInterval {
		s.setLocked(Identity{User: snap.User, Role: snap.Role})
		if s.state.MirroredRole() != string(snap.Role) {
			s.state.MirrorRole(snap.Role)
		}
		s.ready = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if api.TokenExpired(token, s.now()) {
		s.logger.Info("session token expired, logging out")
		s.Logout()
		return
	}

	id, err := resolve(ctx, s.base.WithToken(token))
	if err != nil {
		s.logger.Warn("session restore failed, logging out", slog.Any("error", err))
		s.Logout()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token() != token {
		// Logged out or replaced while resolving.
		s.ready = true
		return
	}
	s.commitLocked(id)
}

// Login exchanges credentials for a token and resolves the identity. State is
// only written once profile and role are both known; on failure the store is
// untouched and the API error is returned as is.
func (s *Store) Login(ctx context.Context, email, password string) (Identity, error) {
	token, err := s.base.Login(ctx, api.Credentials{Email: email, Senha: password})
	if err != nil {
		return Identity{}, err
	}
	id, err := resolve(ctx, s.base.WithToken(token))
	if err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetToken(token)
	s.commitLocked(id)
	s.logger.Info("user logged in", slog.Int64("user_id", id.User.User.ID), slog.String("role", string(id.Role)))
	return id, nil
}

// Register creates the account and logs it in.
func (s *Store) Register(ctx context.Context, req api.RegisterRequest) (Identity, error) {
	if err := s.base.Register(ctx, req); err != nil {
		return Identity{}, err
	}
	return s.Login(ctx, req.Email, req.Senha)
}

// Logout forgets the token, the cached identity and the role mirror.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// RefreshRole asks the API for the current role and stores it. When the call
// fails the role falls back to guest and the cached snapshot is marked stale
// so the next request asks again. A 401 has already logged the session out
// through the client hook, leaving the role empty.
func (s *Store) RefreshRole(ctx context.Context) shared.Role {
	role, err := s.Client().Role(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return s.Role()
		}
		s.logger.Warn("role refresh failed, falling back to guest", slog.Any("error", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token() == "" {
		return s.role
	}
	resolvedAt := s.now()
	if err != nil {
		role = shared.RoleGuest
		resolvedAt = time.Time{}
	}
	s.role = role
	if s.user != nil {
		s.state.SetSnapshot(Snapshot{User: *s.user, Role: role, ResolvedAt: resolvedAt})
	}
	s.state.MirrorRole(role)
	return role
}

// UpdateUser submits the changed profile fields and reloads the profile.
func (s *Store) UpdateUser(ctx context.Context, update api.ProfileUpdate) error {
	client := s.Client()
	if err := client.UpdateProfile(ctx, update); err != nil {
		return err
	}
	profile, err := client.Profile(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Token() == "" {
		return api.ErrUnauthorized
	}
	s.user = &profile
	if snap, ok := s.state.Snapshot(); ok {
		snap.User = profile
		s.state.SetSnapshot(snap)
	}
	return nil
}

// Client returns an API client carrying the session token. A 401 on any call
// made through it logs the session out.
func (s *Store) Client() *api.Client {
	s.mu.RLock()
	token := s.state.Token()
	s.mu.RUnlock()
	return s.base.WithToken(token).WithUnauthorizedHandler(s.expire)
}

// Authenticated reports whether a token and a resolved user are present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.state.Token() != ""
}

// User returns the current profile.
func (s *Store) User() (api.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return api.Profile{}, false
	}
	return *s.user, true
}

// Role returns the current role, empty when logged out.
func (s *Store) Role() shared.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Ready reports whether Initialize has settled.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) expire(ctx context.Context) {
	s.logger.Info("api rejected session token, logging out")
	s.Logout()
}

func (s *Store) setLocked(id Identity) {
	user := id.User
	s.user = &user
	s.role = id.Role
}

func (s *Store) commitLocked(id Identity) {
	s.setLocked(id)
	s.state.SetSnapshot(Snapshot{User: id.User, Role: id.Role, ResolvedAt: s.now()})
	s.state.MirrorRole(id.Role)
	s.ready = true
}

func (s *Store) clearLocked() {
	s.state.ClearToken()
	s.state.ClearSnapshot()
	s.state.ClearRoleMirror()
	s.user = nil
	s.role = ""
	s.ready = true
}

// resolve fetches profile and role concurrently; both must succeed.
func resolve(ctx context.Context, client *api.Client) (Identity, error) {
	var id Identity
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := client.Profile(gctx)
		if err != nil {
			return err
		}
		id.User = profile
		return nil
	})
	g.Go(func() error {
		role, err := client.Role(gctx)
		if err != nil {
			return err
		}
		id.Role = role
		return nil
	})
	if err := g.Wait(); err != nil {
		return Identity{}, err
	}
	return id, nil
}
