package httpserver_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/identity/httpserver"
	"github.com/goliatone/go-auth-sync/identity/local"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type tokenConfig struct{}

func (tokenConfig) GetSigningKey() string   { return "test-signing-key-0123456789" }
func (tokenConfig) GetTokenExpiration() int { return 1 }
func (tokenConfig) GetIssuer() string       { return "test-issuer" }
func (tokenConfig) GetAudience() []string   { return []string{"test-audience"} }

type apiError struct {
	Code    int                          `json:"code"`
	Message string                       `json:"message"`
	Data    map[string]map[string]string `json:"data"`
}

func newServer(t *testing.T, opts ...httpserver.Option) *httpserver.Server {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	directory := local.NewDirectory(db, tokenConfig{},
		local.WithHashCost(bcrypt.MinCost),
		local.WithLogger(authsync.NopLogger{}),
	)
	require.NoError(t, directory.Migrate(context.Background()))

	opts = append([]httpserver.Option{httpserver.WithLogger(authsync.NopLogger{})}, opts...)
	return httpserver.New(directory, opts...)
}

func doJSON(t *testing.T, srv *httpserver.Server, method, path string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func createAccount(t *testing.T, srv *httpserver.Server, email, password string) authsync.User {
	t.Helper()
	status, raw := doJSON(t, srv, http.MethodPost, "/api/collections/users/records", map[string]string{
		"email":           email,
		"password":        password,
		"passwordConfirm": password,
	}, nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	user := authsync.User{}
	require.NoError(t, json.Unmarshal(raw, &user))
	return user
}

func TestServer_Health(t *testing.T) {
	srv := newServer(t)
	status, raw := doJSON(t, srv, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "API is healthy.")
}

func TestServer_CreateRecord(t *testing.T) {
	srv := newServer(t)

	user := createAccount(t, srv, "jane@example.com", "password123")
	assert.NotEmpty(t, user.ID())
	assert.Equal(t, "jane@example.com", user.Email())

	t.Run("duplicate", func(t *testing.T) {
		status, raw := doJSON(t, srv, http.MethodPost, "/api/collections/users/records", map[string]string{
			"email":           "jane@example.com",
			"password":        "password123",
			"passwordConfirm": "password123",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		apiErr := apiError{}
		require.NoError(t, json.Unmarshal(raw, &apiErr))
		assert.Equal(t, "Failed to create record.", apiErr.Message)
		assert.Equal(t, "validation_not_unique", apiErr.Data["email"]["code"])
	})

	t.Run("invalid", func(t *testing.T) {
		status, raw := doJSON(t, srv, http.MethodPost, "/api/collections/users/records", map[string]string{
			"email":           "bad",
			"password":        "password123",
			"passwordConfirm": "password456",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		apiErr := apiError{}
		require.NoError(t, json.Unmarshal(raw, &apiErr))
		assert.Equal(t, "validation_invalid_value", apiErr.Data["email"]["code"])
		assert.Contains(t, apiErr.Data, "passwordConfirm")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/collections/users/records", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.App().Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_AuthWithPassword(t *testing.T) {
	srv := newServer(t)
	user := createAccount(t, srv, "jane@example.com", "password123")

	status, raw := doJSON(t, srv, http.MethodPost, "/api/collections/users/auth-with-password", map[string]string{
		"identity": "jane@example.com",
		"password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, status, string(raw))

	res := struct {
		Token  string        `json:"token"`
		Record authsync.User `json:"record"`
	}{}
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, user, res.Record)

	t.Run("me", func(t *testing.T) {
		status, raw := doJSON(t, srv, http.MethodGet, "/api/me", nil, map[string]string{
			"Authorization": "Bearer " + res.Token,
		})
		require.Equal(t, http.StatusOK, status, string(raw))

		me := authsync.User{}
		require.NoError(t, json.Unmarshal(raw, &me))
		assert.Equal(t, user, me)
	})

	t.Run("me without token", func(t *testing.T) {
		status, _ := doJSON(t, srv, http.MethodGet, "/api/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("me with other auth schemes", func(t *testing.T) {
		for _, header := range []string{"Basic " + res.Token, res.Token, "Bearer ", "Bearer not-a-token"} {
			status, _ := doJSON(t, srv, http.MethodGet, "/api/me", nil, map[string]string{
				"Authorization": header,
			})
			assert.Equal(t, http.StatusUnauthorized, status, header)
		}
	})

	t.Run("me scheme is case insensitive", func(t *testing.T) {
		status, raw := doJSON(t, srv, http.MethodGet, "/api/me", nil, map[string]string{
			"Authorization": "bearer " + res.Token,
		})
		require.Equal(t, http.StatusOK, status, string(raw))
	})

	t.Run("wrong password", func(t *testing.T) {
		status, raw := doJSON(t, srv, http.MethodPost, "/api/collections/users/auth-with-password", map[string]string{
			"identity": "jane@example.com",
			"password": "nope",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, status)

		apiErr := apiError{}
		require.NoError(t, json.Unmarshal(raw, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.Code)
		assert.Equal(t, "Failed to authenticate.", apiErr.Message)
	})
}

func TestServer_RateLimit(t *testing.T) {
	srv := newServer(t, httpserver.WithRateLimit(2, time.Minute))

	body := map[string]string{"identity": "nobody@example.com", "password": "nope"}
	for i := 0; i < 2; i++ {
		status, _ := doJSON(t, srv, http.MethodPost, "/api/collections/users/auth-with-password", body, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	}

	status, raw := doJSON(t, srv, http.MethodPost, "/api/collections/users/auth-with-password", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(raw), "Too many requests.")
}

func TestServer_Collection(t *testing.T) {
	srv := newServer(t, httpserver.WithCollection("members"))

	status, _ := doJSON(t, srv, http.MethodPost, "/api/collections/members/records", map[string]string{
		"email":           "jane@example.com",
		"password":        "password123",
		"passwordConfirm": "password123",
	}, nil)
	assert.Equal(t, http.StatusOK, status)

	routes := httpserver.RoutesFor("members")
	assert.Equal(t, "/api/collections/members/auth-with-password", routes.AuthWithPassword)
}
