package local

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	authsync "github.com/goliatone/go-auth-sync"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// MaxLoginAttempts is the maximun number of failed attempts an account
// gets within CoolDownPeriod
var MaxLoginAttempts = 5

// CoolDownPeriod is the window in which failed attempts are counted
var CoolDownPeriod = 24 * time.Hour

// Directory verifies passwords, creates accounts and mints session tokens.
// It is the server half of the identity service.
type Directory struct {
	users     *Users
	tokens    *TokenIssuer
	hashCost  int
	useHashid bool
	logger    authsync.Logger
}

// DirectoryOption configures a Directory
type DirectoryOption func(*Directory)

// WithHashCost sets the bcrypt cost used for new passwords
func WithHashCost(cost int) DirectoryOption {
	return func(d *Directory) {
		d.hashCost = cost
	}
}

// WithHashid derives account ids from the email instead of random uuids
func WithHashid(enabled bool) DirectoryOption {
	return func(d *Directory) {
		d.useHashid = enabled
	}
}

// WithLogger sets the directory logger
func WithLogger(logger authsync.Logger) DirectoryOption {
	return func(d *Directory) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDirectory creates a Directory on db, signing tokens per cfg
func NewDirectory(db *bun.DB, cfg TokenConfig, opts ...DirectoryOption) *Directory {
	d := &Directory{
		users:    NewUsers(db),
		tokens:   NewTokenIssuer(cfg),
		hashCost: bcrypt.DefaultCost,
		logger:   authsync.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Migrate prepares the database schema
func (d *Directory) Migrate(ctx context.Context) error {
	if err := d.users.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate users table")
	}
	return nil
}

// Tokens exposes the token issuer
func (d *Directory) Tokens() *TokenIssuer {
	return d.tokens
}

// VerifyPassword checks the credential/secret pair and issues a token
func (d *Directory) VerifyPassword(ctx context.Context, credential, secret string) (authsync.AuthResult, error) {
	user, err := d.users.GetByEmail(ctx, credential)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return authsync.AuthResult{}, ErrInvalidCredentials
		}
		return authsync.AuthResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user.LoginAttemptAt != nil && time.Since(*user.LoginAttemptAt) > CoolDownPeriod {
		user.LoginAttempts = 0
	}

	//if we have too many attempts in the given window, cool off!
	if user.LoginAttempts >= MaxLoginAttempts {
		return authsync.AuthResult{}, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(secret, user.PasswordHash); err != nil {
		if err2 := d.users.TrackAttemptedLogin(ctx, user); err2 != nil {
			return authsync.AuthResult{}, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return authsync.AuthResult{}, ErrInvalidCredentials
	}

	if err := d.users.TrackSuccessfulLogin(ctx, user); err != nil {
		d.logger.Error("failed to track successful login: %v", err)
	}

	identity := user.Identity()
	token, _, err := d.tokens.Issue(identity)
	if err != nil {
		return authsync.AuthResult{}, err
	}

	return authsync.AuthResult{Token: token, Identity: identity}, nil
}

// CreateUser validates msg and registers a new account
func (d *Directory) CreateUser(ctx context.Context, msg authsync.RegisterAccountMessage) (authsync.User, error) {
	if err := msg.Validate(); err != nil {
		return authsync.User{}, withMetadata(ErrInvalidRegistration, err, map[string]any{
			"validation": validationFields(err),
		})
	}

	_, err := d.users.GetByEmail(ctx, msg.Email)
	if err == nil {
		return authsync.User{}, withMetadata(ErrCredentialTaken, nil, map[string]any{
			"validation": map[string]string{
				"email": "The email is invalid or already in use.",
			},
		})
	}
	if !repository.IsRecordNotFound(err) {
		return authsync.User{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing user")
	}

	hash, err := HashPassword(msg.Password, d.hashCost)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return authsync.User{}, richErr
		}
		return authsync.User{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	record := &UserRecord{
		Email:        msg.Email,
		Username:     authsync.UsernameFromEmail("", normalizeEmail(msg.Email)),
		PasswordHash: hash,
	}

	if d.useHashid {
		if id, err := hashid.NewUUID(normalizeEmail(msg.Email)); err == nil {
			record.ID = id
		}
	}

	created, err := d.users.Register(ctx, record)
	if err != nil {
		// lost a race with a concurrent registration of the same email
		if isUniqueViolation(err) {
			return authsync.User{}, withMetadata(ErrCredentialTaken, err, map[string]any{
				"validation": map[string]string{
					"email": "The email is invalid or already in use.",
				},
			})
		}
		return authsync.User{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register user")
	}

	d.logger.Info("registered account %s", created.Email)

	return created.Identity(), nil
}

// IdentityFromToken validates raw and loads the account it belongs to
func (d *Directory) IdentityFromToken(ctx context.Context, raw string) (authsync.User, error) {
	claims, err := d.tokens.Validate(raw)
	if err != nil {
		return authsync.User{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authsync.User{}, withMetadata(ErrInvalidToken, err, nil)
	}

	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return authsync.User{}, ErrInvalidToken
		}
		return authsync.User{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return user.Identity(), nil
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}
	if errs, ok := err.(validation.Errors); ok {
		for k, v := range errs {
			fields[k] = v.Error()
		}
		return fields
	}
	fields["_"] = err.Error()
	return fields
}
