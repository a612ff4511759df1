package local_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/identity/local"
	"github.com/goliatone/go-auth-sync/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestService_WithController(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithLogger(authsync.NopLogger{}))
	service := local.NewService(newDirectory(t), store)

	c := authsync.NewController(authsync.NewStoreAdapter(store), service, authsync.WithLogger(authsync.NopLogger{}))
	defer c.Close()

	require.NoError(t, c.Register(ctx, "jane@example.com", "password123", "password123"))

	s := c.Snapshot()
	assert.True(t, s.Authenticated())
	assert.False(t, s.IsLoading)
	assert.Equal(t, "jane@example.com", s.Identity.Email())
	assert.Equal(t, store.Token(), s.Token)

	c.Logout()
	assert.False(t, c.Snapshot().Authenticated())

	err := c.Login(ctx, "jane@example.com", "wrong-password")
	assert.True(t, authsync.IsAuthenticationFailed(err))
	assert.Equal(t, "Failed to authenticate.", authsync.ServiceMessage(err))
	assert.False(t, c.Snapshot().Authenticated())

	err = c.Register(ctx, "jane@example.com", "password123", "password123")
	assert.True(t, authsync.IsAccountCreationFailed(err))
	assert.Equal(t, "Failed to create record.", authsync.ServiceMessage(err))

	require.NoError(t, c.Login(ctx, "jane@example.com", "password123"))
	assert.True(t, c.Snapshot().Authenticated())
}

func TestService_FailedAuthLeavesStoreAlone(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithPair("T0", authsync.User{UserID: "u0", UserEmail: "old@example.com"}))
	service := local.NewService(newDirectory(t), store)

	_, err := service.AuthenticateWithPassword(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, local.ErrInvalidCredentials)
	assert.Equal(t, "T0", store.Token())
}

func TestTokenIssuer(t *testing.T) {
	issuer := local.NewTokenIssuer(newTokenConfig())
	user := authsync.User{UserID: "u1", UserEmail: "a@b.co", UserRole: local.RoleAdmin}

	raw, expiresAt, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, "a@b.co", claims.Email)
	assert.Equal(t, local.RoleAdmin, claims.UserRole)
	assert.Equal(t, jwt.ClaimStrings{"test-audience"}, claims.Audience)
	assert.NotEmpty(t, claims.ID)

	_, _, err = issuer.Issue(nil)
	assert.Error(t, err)

	t.Run("wrong audience", func(t *testing.T) {
		cfg := newTokenConfig()
		cfg.audience = []string{"someone-else"}
		_, err := local.NewTokenIssuer(cfg).Validate(raw)
		assert.True(t, isInvalidToken(err))
	})

	t.Run("expired", func(t *testing.T) {
		cfg := newTokenConfig()
		cfg.hours = -1
		expired, _, err := local.NewTokenIssuer(cfg).Issue(user)
		require.NoError(t, err)

		_, err = issuer.Validate(expired)
		require.True(t, isInvalidToken(err))
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := local.HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.NoError(t, local.ComparePasswordAndHash("password123", hash))
	assert.ErrorIs(t, local.ComparePasswordAndHash("nope", hash), local.ErrInvalidCredentials)

	_, err = local.HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, local.ErrNoEmptyString)
}
