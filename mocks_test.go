package authsync_test

import (
	"context"
	"sync"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/stretchr/testify/mock"
)

// MockIdentityService implements authsync.IdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) AuthenticateWithPassword(ctx context.Context, credential, secret string) (authsync.AuthResult, error) {
	args := m.Called(ctx, credential, secret)
	return args.Get(0).(authsync.AuthResult), args.Error(1)
}

func (m *MockIdentityService) CreateAccount(ctx context.Context, msg authsync.RegisterAccountMessage) (authsync.Identity, error) {
	args := m.Called(ctx, msg)
	identity, _ := args.Get(0).(authsync.Identity)
	return identity, args.Error(1)
}

// saveOnSuccess makes a successful AuthenticateWithPassword write the
// store the way a real identity service does
func saveOnSuccess(store authsync.CredentialStore, result authsync.AuthResult) func(mock.Arguments) {
	return func(mock.Arguments) {
		_ = store.Save(result.Token, result.Identity)
	}
}

// sessionRecorder collects every Session a controller publishes
type sessionRecorder struct {
	mu       sync.Mutex
	sessions []authsync.Session
}

func (r *sessionRecorder) record(s authsync.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *sessionRecorder) all() []authsync.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authsync.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

func (r *sessionRecorder) loadingStates() []bool {
	states := []bool{}
	for _, s := range r.all() {
		states = append(states, s.IsLoading)
	}
	return states
}

type capturingSink struct {
	mu     sync.Mutex
	events []authsync.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt authsync.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []authsync.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []authsync.ActivityEventType{}
	for _, evt := range c.events {
		out = append(out, evt.EventType)
	}
	return out
}

var testUser = authsync.User{
	UserID:    "u1",
	UserEmail: "a@b.co",
	UserName:  "a",
	UserRole:  "member",
}
