package authsync

import "strings"

// User is the identity record handed out by the identity service. It is
// treated as immutable once it reaches a Session.
type User struct {
	UserID       string `json:"id" yaml:"id"`
	UserEmail    string `json:"email" yaml:"email"`
	UserName     string `json:"username,omitempty" yaml:"username,omitempty"`
	UserRole     string `json:"role,omitempty" yaml:"role,omitempty"`
	UserVerified bool   `json:"verified,omitempty" yaml:"verified,omitempty"`
}

var _ Identity = User{}

func (u User) ID() string       { return u.UserID }
func (u User) Email() string    { return u.UserEmail }
func (u User) Username() string { return u.UserName }
func (u User) Role() string     { return u.UserRole }

// UserFromIdentity copies any Identity into a User value
func UserFromIdentity(identity Identity) (User, bool) {
	if isAbsent(identity) {
		return User{}, false
	}

	if u, ok := identity.(User); ok {
		return u, true
	}

	if u, ok := identity.(*User); ok && u != nil {
		return *u, true
	}

	return User{
		UserID:    identity.ID(),
		UserEmail: identity.Email(),
		UserName:  identity.Username(),
		UserRole:  identity.Role(),
	}, true
}

// SameIdentity reports whether both identities describe the same record.
// Two absent identities are the same.
func SameIdentity(a, b Identity) bool {
	aa, bb := isAbsent(a), isAbsent(b)
	if aa || bb {
		return aa && bb
	}

	return a.ID() == b.ID() &&
		strings.EqualFold(a.Email(), b.Email()) &&
		a.Username() == b.Username() &&
		a.Role() == b.Role()
}

// UsernameFromEmail derives a username from the local part of an email
func UsernameFromEmail(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}

func isAbsent(identity Identity) bool {
	if identity == nil {
		return true
	}
	if u, ok := identity.(*User); ok && u == nil {
		return true
	}
	return false
}
