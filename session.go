package authsync

import (
	"fmt"
	"time"
)

// Session is a point in time view of the controller state
type Session struct {
	Token     string
	Identity  Identity
	IsLoading bool
}

// Authenticated reports whether the session holds a token/identity pair
func (s Session) Authenticated() bool {
	return s.Token != "" && !isAbsent(s.Identity)
}

// Expired reports whether the session token carries an expiration that
// is before now. Tokens without a readable expiration never expire here.
func (s Session) Expired(now time.Time) bool {
	if s.Token == "" {
		return false
	}

	info, err := InspectToken(s.Token)
	if err != nil || info.ExpiresAt.IsZero() {
		return false
	}

	return !now.Before(info.ExpiresAt)
}

func (s Session) String() string {
	user := "<anonymous>"
	if !isAbsent(s.Identity) {
		user = fmt.Sprintf("%s (%s)", s.Identity.Email(), s.Identity.ID())
	}
	return fmt.Sprintf("user=%s authenticated=%t loading=%t", user, s.Authenticated(), s.IsLoading)
}

func samePair(s Session, token string, identity Identity) bool {
	return s.Token == token && SameIdentity(s.Identity, identity)
}
