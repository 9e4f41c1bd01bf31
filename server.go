package identity

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/goliatone/go-identity/middleware/guard"
)

// Server wires the gate, the controller, and the routes into a runnable
// fiber app. The route table and its policy table are declared side by side
// here so a route can never be registered without an access decision.
type Server struct {
	app    *fiber.App
	cfg    *Config
	logger Logger
}

// NewServer builds the HTTP server for the given collaborators.
func NewServer(cfg *Config, auth Authenticator, repo RepositoryManager, opts ...ServerOption) *Server {
	s := &Server{
		cfg:    cfg,
		logger: defLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	translator := NewErrorTranslator(cfg).WithLogger(s.logger)
	controller := NewController(auth, repo, translator).WithLogger(s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "go-identity",
		DisableStartupMessage: !cfg.IsDevelopment(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return translator.WriteError(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigin,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	policies := guard.Policies{}.
		Set(fiber.MethodPost, "/auth/register", guard.Policy{Public: true}).
		Set(fiber.MethodPost, "/auth/login", guard.Policy{Public: true}).
		Set(fiber.MethodGet, "/me", guard.Policy{}).
		Set(fiber.MethodGet, "/admin/dashboard", guard.Policy{Roles: []string{RoleAdmin}}).
		Set(fiber.MethodGet, "/users/profile", guard.Policy{Roles: []string{RoleAdmin, RoleManager, RoleUser}})

	app.Use(guard.New(guard.Config{
		Policies:       policies,
		TokenValidator: guardValidator{auth.TokenService()},
		HealthPath:     "/health",
		ContextEnricher: func(ctx context.Context, claims guard.AuthClaims) context.Context {
			return WithClaimsContext(ctx, claims)
		},
	}))

	app.Get("/health", controller.HealthShow)
	app.Post("/auth/register", controller.RegisterCreate)
	app.Post("/auth/login", controller.LoginPost)
	app.Get("/me", controller.MeShow)
	app.Get("/admin/dashboard", controller.AdminDashboardShow)
	app.Get("/users/profile", controller.UsersProfileShow)

	s.app = app

	return s
}

// ServerOption customizes the server at construction time.
type ServerOption func(*Server)

// WithServerLogger sets the logger used by the server and its controller.
func WithServerLogger(l Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// App exposes the underlying fiber app, mostly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on the configured address.
func (s *Server) Listen() error {
	s.logger.Info("identity server listening", "address", s.cfg.Address())
	return s.app.Listen(s.cfg.Address())
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// guardValidator adapts a TokenValidator to the gate's locally declared
// validator interface.
type guardValidator struct {
	ts TokenValidator
}

func (g guardValidator) Validate(tokenString string) (guard.AuthClaims, error) {
	claims, err := g.ts.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
