package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// User is the authenticated user's profile.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// userWire mirrors the profile shapes the backend has used: "id" or "_id",
// as a string or a number, and "username" in place of "name".
type userWire struct {
	ID       flexibleID `json:"id"`
	MongoID  flexibleID `json:"_id"`
	Email    string     `json:"email"`
	Name     string     `json:"name"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
}

// UnmarshalJSON accepts every profile shape the backend has produced.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := string(w.ID)
	if id == "" {
		id = string(w.MongoID)
	}

	name := w.Name
	if name == "" {
		name = w.Username
	}

	*u = User{
		ID:    id,
		Email: w.Email,
		Name:  name,
		Role:  w.Role,
	}

	return nil
}

// flexibleID handles both string and numeric JSON identifiers.
type flexibleID string

// UnmarshalJSON implements custom unmarshalling for identifiers that may be
// encoded as a JSON string or a JSON number.
func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}

	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*f = flexibleID(strconv.FormatInt(i, 10))
		return nil
	}

	*f = flexibleID(n.String())

	return nil
}

// Session is an authenticated session: a bearer token and the profile it
// belongs to. Both are set or neither is.
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Valid reports whether the session satisfies the both-or-neither rule with
// both present.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a stored secret
}
