package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	authsync "github.com/goliatone/go-auth-sync"
	"github.com/goliatone/go-auth-sync/identity/local"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Routes holds the endpoint paths served for one auth collection
type Routes struct {
	Health           string
	AuthWithPassword string
	CreateRecord     string
	Me               string
}

// RoutesFor returns the PocketBase compatible paths for collection
func RoutesFor(collection string) Routes {
	base := "/api/collections/" + collection
	return Routes{
		Health:           "/api/health",
		AuthWithPassword: base + "/auth-with-password",
		CreateRecord:     base + "/records",
		Me:               "/api/me",
	}
}

// Server exposes a local.Directory over HTTP
type Server struct {
	srv        router.Server[*fiber.App]
	app        *fiber.App
	directory  *local.Directory
	routes     Routes
	collection string
	logger     authsync.Logger

	rateMax    int
	rateWindow time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger authsync.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCollection changes the auth collection name used in routes
func WithCollection(collection string) Option {
	return func(s *Server) {
		if collection != "" {
			s.routes = RoutesFor(collection)
			s.collection = collection
		}
	}
}

// WithRateLimit limits the collection endpoints to max requests per window
// per client IP. A zero max disables limiting.
func WithRateLimit(max int, window time.Duration) Option {
	return func(s *Server) {
		s.rateMax = max
		s.rateWindow = window
	}
}

// New builds the fiber backed router and registers the routes
func New(directory *local.Directory, opts ...Option) *Server {
	s := &Server{
		directory:  directory,
		routes:     RoutesFor("users"),
		collection: "users",
		logger:     authsync.DefaultLogger(),
		rateMax:    20,
		rateWindow: time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		s.app = router.DefaultFiberOptions(fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ErrorHandler:          s.errorHandler,
		}))

		if s.rateMax > 0 {
			s.app.Use("/api/collections/"+s.collection, s.rateLimiter())
		}

		return s.app
	})

	s.registerRoutes(s.srv.Router())
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	s.logger.Info("identity service listening on %s", addr)
	return s.srv.Serve(addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) rateLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        s.rateMax,
		Expiration: s.rateWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(http.StatusTooManyRequests).JSON(apiError{
				Code:    http.StatusTooManyRequests,
				Message: "Too many requests.",
				Data:    map[string]fieldError{},
			})
		},
	})
}

func (s *Server) registerRoutes(r router.Router[*fiber.App]) {
	r.Get(s.routes.Health, s.health).
		SetName("health.get")

	r.Post(s.routes.AuthWithPassword, s.authWithPassword).
		SetName("auth-with-password.post")

	r.Post(s.routes.CreateRecord, s.createRecord).
		SetName("records.post")

	r.Get(s.routes.Me, s.requireToken()(s.me)).
		SetName("me.get")
}

func (s *Server) health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"code":    http.StatusOK,
		"message": "API is healthy.",
	})
}

type authWithPasswordPayload struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string        `json:"token"`
	Record authsync.User `json:"record"`
}

func (s *Server) authWithPassword(ctx router.Context) error {
	payload := authWithPasswordPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "Failed to authenticate.").
			WithCode(errors.CodeBadRequest)
	}

	result, err := s.directory.VerifyPassword(ctx.Context(), payload.Identity, payload.Password)
	if err != nil {
		return err
	}

	record, _ := authsync.UserFromIdentity(result.Identity)

	return ctx.JSON(http.StatusOK, authResponse{
		Token:  result.Token,
		Record: record,
	})
}

func (s *Server) createRecord(ctx router.Context) error {
	payload := authsync.RegisterAccountMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "Failed to create record.").
			WithCode(errors.CodeBadRequest)
	}

	user, err := s.directory.CreateUser(ctx.Context(), payload)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, user)
}

const identityLocalsKey = "authsync.identity"

// requireToken resolves the bearer token to an account and stores it in
// the request locals for the next handler
func (s *Server) requireToken() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			raw := strings.TrimSpace(ctx.Header(fiber.HeaderAuthorization))
			if len(raw) < len("Bearer ") || !strings.EqualFold(raw[:len("Bearer")], "Bearer") {
				return local.ErrInvalidToken
			}

			raw = strings.TrimSpace(raw[len("Bearer"):])
			if raw == "" {
				return local.ErrInvalidToken
			}

			user, err := s.directory.IdentityFromToken(ctx.Context(), raw)
			if err != nil {
				return err
			}

			ctx.Locals(identityLocalsKey, user)
			return next(ctx)
		}
	}
}

func (s *Server) me(ctx router.Context) error {
	user, ok := ctx.Locals(identityLocalsKey).(authsync.User)
	if !ok {
		return local.ErrInvalidToken
	}

	return ctx.JSON(http.StatusOK, user)
}
