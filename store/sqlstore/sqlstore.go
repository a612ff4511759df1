package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/store/memory"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultSlot is the row key used when no slot is configured
const DefaultSlot = "default"

// Credential is the persisted token/identity pair
type Credential struct {
	bun.BaseModel `bun:"table:auth_credentials,alias:cred"`
	Slot          string     `bun:"slot,pk" json:"slot"`
	Token         string     `bun:"token,notnull" json:"token"`
	UserID        string     `bun:"user_id,notnull" json:"user_id"`
	Email         string     `bun:"email,notnull" json:"email"`
	Username      string     `bun:"username" json:"username,omitempty"`
	Role          string     `bun:"user_role" json:"user_role,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (c *Credential) identity() authsync.User {
	return authsync.User{
		UserID:    c.UserID,
		UserEmail: c.Email,
		UserName:  c.Username,
		UserRole:  c.Role,
	}
}

// Store persists the pair in a SQL table through bun. Listeners are handled
// by the embedded memory store.
type Store struct {
	*memory.Store
	db      *bun.DB
	slot    string
	timeout time.Duration
	logger  authsync.Logger
}

// Option configures a Store
type Option func(*Store)

// WithSlot keys the persisted row, allowing several stores in one table
func WithSlot(slot string) Option {
	return func(s *Store) {
		if slot != "" {
			s.slot = slot
		}
	}
}

// WithTimeout bounds every query issued by the store
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the store logger
func WithLogger(logger authsync.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OpenSQLite opens a bun handle on a sqlite database
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
	}
	// sqlite in-memory databases are per connection
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// New creates the credentials table if needed and loads the stored pair
func New(ctx context.Context, db *bun.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:      db,
		slot:    DefaultSlot,
		timeout: 5 * time.Second,
		logger:  authsync.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if _, err := db.NewCreateTable().
		Model((*Credential)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create credentials table")
	}

	memOpts := []memory.Option{
		memory.WithPersister(s),
		memory.WithLogger(s.logger),
	}

	rec := &Credential{}
	err := db.NewSelect().
		Model(rec).
		Where("?TableAlias.slot = ?", s.slot).
		Limit(1).
		Scan(ctx)

	switch {
	case err == nil:
		memOpts = append(memOpts, memory.WithPair(rec.Token, rec.identity()))
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load credentials")
	}

	s.Store = memory.New(memOpts...)
	return s, nil
}

// Persist upserts the pair. It implements memory.Persister.
func (s *Store) Persist(token string, identity authsync.Identity) error {
	user, ok := authsync.UserFromIdentity(identity)
	if !ok {
		return authsync.ErrIncompletePair
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	now := time.Now().UTC()
	rec := &Credential{
		Slot:      s.slot,
		Token:     token,
		UserID:    user.ID(),
		Email:     user.Email(),
		Username:  user.Username(),
		Role:      user.Role(),
		UpdatedAt: &now,
	}

	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (slot) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("user_id = EXCLUDED.user_id").
		Set("email = EXCLUDED.email").
		Set("username = EXCLUDED.username").
		Set("user_role = EXCLUDED.user_role").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist credentials")
	}

	return nil
}

// Erase deletes the row. It implements memory.Persister.
func (s *Store) Erase() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.db.NewDelete().
		Model((*Credential)(nil)).
		Where("slot = ?", s.slot).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to erase credentials")
	}

	return nil
}
