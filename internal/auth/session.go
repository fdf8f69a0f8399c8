package auth

import (
	"net/http"

	"github.com/vyrodovalexey/gamestore/internal/model"
)

// SessionSource reports the storefront session state.
type SessionSource interface {
	IsAuthenticated() bool
	CurrentUser() *model.User
}

// SessionAuthenticator allows a request while the storefront session is
// signed in. The request itself carries no credentials: the companion
// service acts for the single user of the session.
type SessionAuthenticator struct {
	source SessionSource
	roles  map[string]bool
}

// NewSessionAuthenticator creates a SessionAuthenticator. When roles are
// given, the signed-in user's role must be one of them.
func NewSessionAuthenticator(source SessionSource, roles ...string) *SessionAuthenticator {
	a := &SessionAuthenticator{source: source}

	if len(roles) > 0 {
		a.roles = make(map[string]bool, len(roles))
		for _, role := range roles {
			a.roles[role] = true
		}
	}

	return a
}

// Authenticate returns the signed-in user's identity or ErrUnauthenticated.
func (a *SessionAuthenticator) Authenticate(_ *http.Request) (*AuthInfo, error) {
	if !a.source.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}

	user := a.source.CurrentUser()
	if user == nil {
		return nil, ErrUnauthenticated
	}

	if a.roles != nil && !a.roles[user.Role] {
		return nil, ErrForbidden
	}

	return &AuthInfo{
		Method:  AuthMethodSession,
		Subject: user.Email,
		Claims: map[string]any{
			"id":   user.ID,
			"name": user.Name,
			"role": user.Role,
		},
	}, nil
}

// Method returns AuthMethodSession.
func (a *SessionAuthenticator) Method() AuthMethod {
	return AuthMethodSession
}
