package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/gamestore/internal/apiclient"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

const usersPath = "/users"

// Auth talks to the backend's user endpoints. The backend has answered both
// inside the {allOK, message, data} envelope and with bare objects, so both
// shapes are accepted.
type Auth struct {
	client *apiclient.Client
}

// NewAuth creates the auth service.
func NewAuth(client *apiclient.Client) *Auth {
	return &Auth{client: client}
}

// authWire covers the enveloped and the bare response shapes.
type authWire struct {
	AllOK   *bool           `json:"allOK"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	User    *model.User     `json:"user"`
}

func decodeAuth(raw []byte) (*authWire, error) {
	var w authWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &apiclient.Error{Kind: apiclient.ErrBusiness, Err: fmt.Errorf("decoding auth response: %w", err)}
	}

	if w.AllOK != nil && !*w.AllOK {
		return nil, &apiclient.Error{Kind: apiclient.ErrBusiness, Message: w.Message}
	}

	return &w, nil
}

// Login exchanges credentials for a token and profile.
func (a *Auth) Login(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, apiclient.ValidationError(err)
	}

	raw, err := a.client.DoRaw(ctx, http.MethodPost, usersPath+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	w, err := decodeAuth(raw)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	sess := &model.Session{Token: w.Token, User: w.User}
	if len(w.Data) > 0 && string(w.Data) != "null" {
		var inner model.Session
		if err := json.Unmarshal(w.Data, &inner); err == nil {
			if inner.Token != "" {
				sess.Token = inner.Token
			}
			if inner.User != nil {
				sess.User = inner.User
			}
		}
	}

	return sess, nil
}

// Verify asks the backend whether the attached token is valid. A response
// carrying a user profile is a positive answer; anything else is negative.
func (a *Auth) Verify(ctx context.Context) (*model.User, bool, error) {
	raw, err := a.client.DoRaw(ctx, http.MethodGet, usersPath+"/verify", "", nil)
	if err != nil {
		return nil, false, fmt.Errorf("verify: %w", err)
	}

	w, err := decodeAuth(raw)
	if err != nil {
		return nil, false, fmt.Errorf("verify: %w", err)
	}

	user := w.User
	if user == nil && len(w.Data) > 0 && string(w.Data) != "null" {
		user = userFromData(w.Data)
	}

	return user, user != nil, nil
}

// userFromData reads a profile from either {"user": {...}} or the profile
// object itself.
func userFromData(data json.RawMessage) *model.User {
	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	if _, ok := fields["email"]; !ok {
		return nil
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil
	}
	return &user
}
