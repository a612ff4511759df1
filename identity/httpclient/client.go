package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	authsync "github.com/goliatone/go-auth-sync"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTimeout bounds every request when no http.Client is provided
const DefaultTimeout = 10 * time.Second

// Client talks to a PocketBase compatible identity service over HTTP and
// implements authsync.IdentityService. A successful authentication is
// saved to the credential store before AuthenticateWithPassword returns.
type Client struct {
	baseURL    string
	collection string
	http       *http.Client
	store      authsync.CredentialStore
	logger     authsync.Logger
}

var _ authsync.IdentityService = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCollection sets the auth collection, "users" by default
func WithCollection(collection string) Option {
	return func(c *Client) {
		if collection != "" {
			c.collection = collection
		}
	}
}

// WithTimeout sets the request timeout of the default http.Client
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger authsync.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client for the service at baseURL that writes
// authenticated sessions to store
func New(baseURL string, store authsync.CredentialStore, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: "users",
		http:       &http.Client{Timeout: DefaultTimeout},
		store:      store,
		logger:     authsync.DefaultLogger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type authWithPasswordRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string        `json:"token"`
	Record authsync.User `json:"record"`
}

type apiError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (c *Client) AuthenticateWithPassword(ctx context.Context, credential, secret string) (authsync.AuthResult, error) {
	res := authResponse{}
	err := c.do(ctx, http.MethodPost, c.collectionPath("auth-with-password"), "", authWithPasswordRequest{
		Identity: credential,
		Password: secret,
	}, &res)
	if err != nil {
		return authsync.AuthResult{}, err
	}

	if res.Token == "" || res.Record.UserID == "" {
		return authsync.AuthResult{}, goerrors.New("identity service returned an incomplete auth response", goerrors.CategoryOperation).
			WithCode(http.StatusBadGateway)
	}

	if err := c.store.Save(res.Token, res.Record); err != nil {
		return authsync.AuthResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store credentials")
	}

	c.logger.Debug("authenticated %s", res.Record.UserEmail)

	return authsync.AuthResult{Token: res.Token, Identity: res.Record}, nil
}

func (c *Client) CreateAccount(ctx context.Context, msg authsync.RegisterAccountMessage) (authsync.Identity, error) {
	user := authsync.User{}
	if err := c.do(ctx, http.MethodPost, c.collectionPath("records"), "", msg, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// Me returns the account the stored token belongs to
func (c *Client) Me(ctx context.Context) (authsync.User, error) {
	token := c.store.Token()
	if token == "" {
		return authsync.User{}, goerrors.New("not logged in", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	user := authsync.User{}
	if err := c.do(ctx, http.MethodGet, "/api/me", token, nil, &user); err != nil {
		return authsync.User{}, err
	}
	return user, nil
}

// Health checks that the identity service is reachable
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", "", nil, nil)
}

func (c *Client) collectionPath(action string) string {
	return fmt.Sprintf("/api/collections/%s/%s", c.collection, action)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "identity service unreachable").
			WithMetadata(map[string]any{
				"method": method,
				"path":   path,
			})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode response")
	}

	return nil
}

func decodeError(status int, raw []byte) error {
	apiErr := apiError{}
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	richErr := newStatusError(status, apiErr.Message)

	if len(apiErr.Data) > 0 {
		richErr = richErr.WithMetadata(map[string]any{"data": apiErr.Data})
	}

	return richErr
}

func newStatusError(status int, message string) *goerrors.Error {
	switch status {
	case http.StatusBadRequest:
		return goerrors.New(message, goerrors.CategoryBadInput).WithCode(status)
	case http.StatusUnauthorized:
		return goerrors.New(message, goerrors.CategoryAuth).WithCode(status)
	case http.StatusForbidden:
		return goerrors.New(message, goerrors.CategoryAuthz).WithCode(status)
	case http.StatusNotFound:
		return goerrors.New(message, goerrors.CategoryNotFound).WithCode(status)
	case http.StatusConflict:
		return goerrors.New(message, goerrors.CategoryConflict).WithCode(status)
	case http.StatusTooManyRequests:
		return goerrors.New(message, goerrors.CategoryRateLimit).WithCode(status)
	}
	return goerrors.New(message, goerrors.CategoryOperation).WithCode(status)
}
