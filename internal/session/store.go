// Package session holds the authenticated user's bearer token and profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/kv"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// ErrIncompleteSession is returned when the backend reports a login success
// without both a token and a profile.
var ErrIncompleteSession = errors.New("login response is missing token or user")

const msgMissingCredentials = "Email y contraseña son requeridos"

// AuthAPI is the backend side of authentication.
type AuthAPI interface {
	// Login exchanges credentials for a session.
	Login(ctx context.Context, creds model.Credentials) (*model.Session, error)
	// Verify asks the backend whether the current token is valid. It returns
	// the profile on a positive answer.
	Verify(ctx context.Context) (*model.User, bool, error)
}

// Listener receives the current profile after every change, or nil after a
// logout.
type Listener func(user *model.User)

// Store is the session. It is safe for concurrent use.
type Store struct {
	bridge kv.Bridge
	api    AuthAPI
	logger *zap.Logger

	mu    sync.RWMutex
	token string
	user  *model.User

	subMu     sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
	order     []uint64
}

// New creates a Store and restores a persisted session. A half-present or
// malformed persisted session is discarded.
func New(ctx context.Context, bridge kv.Bridge, api AuthAPI, logger *zap.Logger) *Store {
	s := &Store{
		bridge:    bridge,
		api:       api,
		logger:    logger,
		listeners: make(map[uint64]Listener),
	}

	s.restore(ctx)

	return s
}

func (s *Store) restore(ctx context.Context) {
	token, hasToken, err := s.bridge.Get(ctx, kv.KeyAuthToken)
	if err != nil {
		s.logger.Warn("failed to read persisted token", zap.Error(err))
		return
	}

	rawUser, hasUser, err := s.bridge.Get(ctx, kv.KeyUserData)
	if err != nil {
		s.logger.Warn("failed to read persisted profile", zap.Error(err))
		return
	}

	if !hasToken && !hasUser {
		return
	}

	user, decodeErr := decodeUser(rawUser)
	if !hasToken || !hasUser || token == "" || decodeErr != nil {
		s.logger.Warn("discarding incomplete persisted session",
			zap.Bool("has_token", hasToken),
			zap.Bool("has_user", hasUser),
			zap.NamedError("decode_error", decodeErr),
		)
		s.removePersisted(ctx)
		return
	}

	s.token = token
	s.user = user
}

func decodeUser(raw string) (*model.User, error) {
	if raw == "" || raw == "null" {
		return nil, errors.New("empty profile")
	}

	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}

	return &user, nil
}

// Login sends credentials to the backend. On success the token and profile
// are persisted, installed and published. On failure the prior state is left
// untouched.
func (s *Store) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apiclient.Validation(msgMissingCredentials)
	}

	sess, err := s.api.Login(apiclient.Anonymous(ctx), model.Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.Info("login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if !sess.Valid() {
		return nil, &apiclient.Error{Kind: apiclient.ErrBusiness, Err: ErrIncompleteSession}
	}

	user := *sess.User

	s.mu.Lock()
	s.persist(ctx, sess.Token, &user)
	s.token = sess.Token
	s.user = &user
	s.mu.Unlock()

	s.logger.Info("login succeeded", zap.String("user_id", user.ID))
	s.publish(&user)

	return cloneUser(&user), nil
}

func (s *Store) persist(ctx context.Context, token string, user *model.User) {
	data, err := json.Marshal(user)
	if err != nil {
		s.logger.Error("failed to encode profile", zap.Error(err))
		return
	}

	if err := s.bridge.Set(ctx, kv.KeyAuthToken, token); err != nil {
		s.logger.Error("failed to persist token", zap.Error(err))
	}

	if err := s.bridge.Set(ctx, kv.KeyUserData, string(data)); err != nil {
		s.logger.Error("failed to persist profile", zap.Error(err))
	}
}

// Logout clears the token, the profile and their persisted copies, then
// publishes nil. Calling it while logged out is harmless.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.removePersisted(ctx)
	s.mu.Unlock()

	s.publish(nil)
}

func (s *Store) removePersisted(ctx context.Context) {
	for _, key := range []string{kv.KeyAuthToken, kv.KeyUserData} {
		if err := s.bridge.Remove(ctx, key); err != nil {
			s.logger.Error("failed to remove persisted session key",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

// Validate confirms the token with the backend. It reports false without a
// request when no token is held. Any failure or negative answer clears the
// session, unless the checked token is no longer the current one.
func (s *Store) Validate(ctx context.Context) bool {
	token := s.Token()
	if token == "" {
		return false
	}

	_, ok, err := s.api.Verify(ctx)
	if err == nil && ok {
		return true
	}

	s.logger.Info("session rejected by backend", zap.Bool("answer", ok), zap.Error(err))
	s.clearToken(ctx, token)

	return false
}

// HandleUnauthorized clears the session after the backend rejected token.
// A rejection of a token that was already replaced by a newer login, or
// cleared, changes nothing.
func (s *Store) HandleUnauthorized(ctx context.Context, token string) {
	if !s.clearToken(ctx, token) {
		s.logger.Debug("ignoring rejection of a superseded token")
		return
	}
	s.logger.Warn("backend rejected session token, logged out")
}

// clearToken logs out if token is still the current one and reports
// whether it did.
func (s *Store) clearToken(ctx context.Context, token string) bool {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false
	}
	s.token = ""
	s.user = nil
	s.removePersisted(ctx)
	s.mu.Unlock()

	s.publish(nil)

	return true
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// CurrentUser returns a copy of the profile, or nil when logged out.
func (s *Store) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneUser(s.user)
}

// IsAuthenticated reports whether a token is held.
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// Subscribe registers fn for profile changes. The returned function removes
// the registration.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()

		delete(s.listeners, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) publish(user *model.User) {
	s.subMu.RLock()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(cloneUser(user))
	}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
