package authsync

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-auth-sync/internal/dispatch"
)

// Controller owns the client side session. The identity axis (token and
// identity) is written only by the credential store change listener; the
// loading axis is written only by Login and Register.
type Controller struct {
	adapter      *StoreAdapter
	service      IdentityService
	logger       Logger
	activitySink ActivitySink

	mu      sync.RWMutex
	session Session
	closed  bool

	watchMu  sync.Mutex
	watchers []watcher
	nextID   uint64

	// snapshots are queued under mu so watchers see them in commit order
	deliveries dispatch.Queue[Session]

	unsubscribe UnsubscribeFunc
	closeOnce   sync.Once
}

type watcher struct {
	id uint64
	fn func(Session)
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger Logger) Option {
	return func(c *Controller) {
		c.logger = normalizeLogger(logger)
	}
}

// WithActivitySink configures an ActivitySink for emitting session events.
func WithActivitySink(sink ActivitySink) Option {
	return func(c *Controller) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// NewController subscribes to the store behind adapter and seeds the
// session from whatever the store already holds. Call Close to release
// the subscription.
func NewController(adapter *StoreAdapter, service IdentityService, opts ...Option) *Controller {
	c := &Controller{
		adapter:      adapter,
		service:      service,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.unsubscribe = adapter.OnChange(c.handleStoreChange)

	// read the store while holding the lock so a notification racing with
	// construction is applied after the seed, never before it
	c.mu.Lock()
	token, identity := normalizePair(adapter.CurrentToken(), adapter.CurrentIdentity())
	c.session = Session{Token: token, Identity: identity}
	c.mu.Unlock()

	return c
}

// Snapshot returns the current session
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Watch registers fn to be called after every observable session change.
// Deliveries are serialized and arrive in the order the changes were made,
// so the last delivered Session matches Snapshot once the controller is
// idle. fn may call Login, Logout or Register; the changes they cause are
// delivered after fn returns.
func (c *Controller) Watch(fn func(Session)) UnsubscribeFunc {
	if fn == nil {
		return func() {}
	}

	c.watchMu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher{id: id, fn: fn})
	c.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.watchMu.Lock()
			defer c.watchMu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

// Login authenticates against the identity service. The session identity
// is updated by the store notification, not by Login itself.
func (c *Controller) Login(ctx context.Context, credential, secret string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	return c.authenticate(ctx, credential, secret)
}

// Logout clears the credential store. The resulting notification clears
// the session identity.
func (c *Controller) Logout() {
	userID := c.currentUserID()

	c.logger.Debug("logout requested user=%s", userID)
	c.adapter.Clear()

	c.emitEvent(context.Background(), ActivityEventLogout, "", userID, nil)
}

// Register creates an account and then logs in with the same credential.
// Loading stays busy until the chained login resolves.
func (c *Controller) Register(ctx context.Context, credential, secret, secretConfirmation string) error {
	c.setLoading(true)
	defer c.setLoading(false)

	msg := RegisterAccountMessage{
		Email:           credential,
		Password:        secret,
		PasswordConfirm: secretConfirmation,
	}

	c.logger.Debug("register requested credential=%s", credential)

	identity, err := c.service.CreateAccount(ctx, msg)
	if err != nil {
		c.logger.Error("register create account error: %v", err)
		c.emitEvent(ctx, ActivityEventRegisterFailure, credential, "", map[string]any{
			"error": ServiceMessage(err),
		})
		return accountCreationFailed(err, credential)
	}

	userID := ""
	if !isAbsent(identity) {
		userID = identity.ID()
	}
	c.emitEvent(ctx, ActivityEventRegisterSuccess, credential, userID, nil)

	return c.authenticate(ctx, credential, secret)
}

// Close releases the store subscription and drops all watchers. It is safe
// to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.watchMu.Lock()
		c.watchers = nil
		c.watchMu.Unlock()
	})
	return nil
}

func (c *Controller) authenticate(ctx context.Context, credential, secret string) error {
	c.logger.Debug("login requested credential=%s", credential)

	result, err := c.service.AuthenticateWithPassword(ctx, credential, secret)
	if err != nil {
		c.logger.Error("login authenticate error: %v", err)
		c.emitEvent(ctx, ActivityEventLoginFailure, credential, "", map[string]any{
			"error": ServiceMessage(err),
		})
		return authenticationFailed(err, credential)
	}

	userID := ""
	if !isAbsent(result.Identity) {
		userID = result.Identity.ID()
	}
	c.emitEvent(ctx, ActivityEventLoginSuccess, credential, userID, nil)

	return nil
}

func (c *Controller) handleStoreChange(token string, identity Identity) {
	token, identity = normalizePair(token, identity)

	c.mu.Lock()
	if c.closed || samePair(c.session, token, identity) {
		c.mu.Unlock()
		return
	}
	c.session.Token = token
	c.session.Identity = identity
	snapshot := c.session
	c.deliveries.Push(snapshot)
	c.mu.Unlock()

	userID := ""
	if identity != nil {
		userID = identity.ID()
	}

	c.logger.Debug("session changed user=%s authenticated=%t", userID, snapshot.Authenticated())
	c.emitEvent(context.Background(), ActivityEventSessionChanged, "", userID, map[string]any{
		"authenticated": snapshot.Authenticated(),
	})
	c.deliveries.Drain(c.notify)
}

func (c *Controller) setLoading(loading bool) {
	c.mu.Lock()
	if c.closed || c.session.IsLoading == loading {
		c.mu.Unlock()
		return
	}
	c.session.IsLoading = loading
	c.deliveries.Push(c.session)
	c.mu.Unlock()

	c.deliveries.Drain(c.notify)
}

func (c *Controller) notify(snapshot Session) {
	c.watchMu.Lock()
	watchers := make([]watcher, len(c.watchers))
	copy(watchers, c.watchers)
	c.watchMu.Unlock()

	for _, w := range watchers {
		w.fn(snapshot)
	}
}

func (c *Controller) currentUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session.Identity == nil {
		return ""
	}
	return c.session.Identity.ID()
}

func (c *Controller) emitEvent(ctx context.Context, eventType ActivityEventType, credential, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Credential: credential,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := normalizeActivitySink(c.activitySink).Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}

// normalizePair enforces that token and identity are present together
func normalizePair(token string, identity Identity) (string, Identity) {
	if token == "" || isAbsent(identity) {
		return "", nil
	}
	return token, identity
}
