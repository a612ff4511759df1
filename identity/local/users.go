package local

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account repository backing a Directory
type Users struct {
	repository.Repository[*UserRecord]
	db *bun.DB
}

// NewUsers builds the repository on db
func NewUsers(db *bun.DB) *Users {
	repo := repository.NewRepository[*UserRecord](db, repository.ModelHandlers[*UserRecord]{
		NewRecord: func() *UserRecord { return &UserRecord{} },
		GetID: func(u *UserRecord) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *UserRecord, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &Users{
		Repository: repo,
		db:         db,
	}
}

// Migrate creates the users table if it does not exist
func (a *Users) Migrate(ctx context.Context) error {
	_, err := a.db.NewCreateTable().
		Model((*UserRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// GetByEmail finds an account by its normalized email
func (a *Users) GetByEmail(ctx context.Context, email string) (*UserRecord, error) {
	record := &UserRecord{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

// GetByID finds an account by id
func (a *Users) GetByID(ctx context.Context, id uuid.UUID) (*UserRecord, error) {
	record := &UserRecord{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

// Register inserts a new account, filling defaults
func (a *Users) Register(ctx context.Context, record *UserRecord) (*UserRecord, error) {
	prepareUserDefaults(record)
	return a.Repository.Create(ctx, record)
}

// TrackAttemptedLogin bumps the failed attempt counter
func (a *Users) TrackAttemptedLogin(ctx context.Context, user *UserRecord) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("login_attempts = ?", user.LoginAttempts+1).
		Set("login_attempt_at = ?", now).
		Where("id = ?", user.ID).
		Exec(ctx)
	return err
}

// TrackSuccessfulLogin resets the attempt counter and stamps the login
func (a *Users) TrackSuccessfulLogin(ctx context.Context, user *UserRecord) error {
	loggedInAt := time.Now()
	_, err := a.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("loggedin_at = ?", loggedInAt).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", user.ID).
		Exec(ctx)
	return err
}

func prepareUserDefaults(record *UserRecord) {
	if record == nil {
		return
	}

	record.Email = normalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleMember
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation reports whether err, or any error it wraps, is a
// unique constraint failure from SQLite or Postgres
func isUniqueViolation(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value violates unique constraint") {
			return true
		}
	}
	return false
}
