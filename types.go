package authsync

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// UnsubscribeFunc releases a listener registration
type UnsubscribeFunc func()

// ChangeListener receives the new token/identity pair. Both are absent
// ("" and nil) when the store was cleared.
type ChangeListener func(token string, identity Identity)

// CredentialStore holds the current token/identity pair, persists it,
// and notifies listeners whenever it changes.
type CredentialStore interface {
	Token() string
	Identity() Identity
	// Save replaces the pair. Both values are required.
	Save(token string, identity Identity) error
	// Clear resets the pair to absent and notifies listeners before
	// returning.
	Clear()
	OnChange(listener ChangeListener) UnsubscribeFunc
}

// AuthResult is what the identity service returns after a successful
// password authentication
type AuthResult struct {
	Token    string
	Identity Identity
}

// IdentityService is the remote capability used to authenticate and
// create accounts. Implementations are expected to write the credential
// store before AuthenticateWithPassword returns.
type IdentityService interface {
	AuthenticateWithPassword(ctx context.Context, credential, secret string) (AuthResult, error)
	CreateAccount(ctx context.Context, msg RegisterAccountMessage) (Identity, error)
}

type defLogger struct{}

var (
	debugTag = color.New(color.FgHiBlack).Sprint("[DBG]")
	infoTag  = color.New(color.FgCyan).Sprint("[INF]")
	warnTag  = color.New(color.FgYellow).Sprint("[WRN]")
	errTag   = color.New(color.FgRed).Sprint("[ERR]")
)

func (d defLogger) Error(format string, args ...any) {
	fmt.Fprintf(os.Stderr, errTag+" AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, warnTag+" AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf(infoTag+" AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf(debugTag+" AUTHSYNC "+newline(format), args...)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// DefaultLogger returns the level tagged stdout/stderr logger used when no
// logger is configured
func DefaultLogger() Logger {
	return defLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
