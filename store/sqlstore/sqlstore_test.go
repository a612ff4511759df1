package sqlstore_test

import (
	"context"
	"strings"
	"testing"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/store/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var user = authsync.User{UserID: "u1", UserEmail: "a@b.co", UserName: "a", UserRole: "member"}

func openDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := sqlstore.OpenSQLite("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	s, err := sqlstore.New(ctx, db, sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	assert.Empty(t, s.Token())

	calls := 0
	s.OnChange(func(string, authsync.Identity) { calls++ })

	require.NoError(t, s.Save("T1", user))
	assert.Equal(t, 1, calls)

	reopened, err := sqlstore.New(ctx, db, sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	assert.Equal(t, "T1", reopened.Token())
	assert.Equal(t, user, reopened.Identity())

	// upsert replaces the row
	other := authsync.User{UserID: "u2", UserEmail: "c@d.co"}
	require.NoError(t, s.Save("T2", other))

	reopened, err = sqlstore.New(ctx, db, sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	assert.Equal(t, "T2", reopened.Token())
	assert.Equal(t, other, reopened.Identity())

	count, err := db.NewSelect().Model((*sqlstore.Credential)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_ClearDeletesRow(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	s, err := sqlstore.New(ctx, db, sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	require.NoError(t, s.Save("T1", user))

	s.Clear()
	assert.Empty(t, s.Token())

	reopened, err := sqlstore.New(ctx, db, sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	assert.Empty(t, reopened.Token())
	assert.Nil(t, reopened.Identity())
}

func TestStore_SlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	work, err := sqlstore.New(ctx, db, sqlstore.WithSlot("work"), sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	home, err := sqlstore.New(ctx, db, sqlstore.WithSlot("home"), sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)

	require.NoError(t, work.Save("T-work", user))
	require.NoError(t, home.Save("T-home", user))

	home.Clear()

	reopened, err := sqlstore.New(ctx, db, sqlstore.WithSlot("work"), sqlstore.WithLogger(authsync.NopLogger{}))
	require.NoError(t, err)
	assert.Equal(t, "T-work", reopened.Token())
}
