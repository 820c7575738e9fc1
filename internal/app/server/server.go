package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkguard/config"
	"github.com/sifan077/linkguard/internal/app/repository"
	"github.com/sifan077/linkguard/internal/app/service"
	inthttp "github.com/sifan077/linkguard/internal/http/handler"
	"github.com/sifan077/linkguard/internal/http/middleware"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Dependencies bundles the services and settings required by the HTTP server.
type Dependencies struct {
	Logger    *zap.Logger
	Server    config.ServerConfig
	RateLimit config.RateLimitConfig
	// RateWindows is optional; without it requests are not throttled.
	RateWindows repository.RateWindowRepository
	Metrics     *infraPrometheus.Metrics
	Links       service.LinkService
	Recorder    *service.ClickRecorder
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with middleware and routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "linkguard",
		ProxyHeader:           deps.Server.ProxyHeader,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.Recovery(s.deps.Logger),
		middleware.RequestID(),
		middleware.Logger(s.deps.Logger),
		middleware.CORS(),
	)

	if s.deps.RateWindows != nil && s.deps.RateLimit.Enabled {
		s.app.Use(middleware.RateLimit(s.deps.RateWindows, middleware.RateLimitConfig{
			MaxRequests: s.deps.RateLimit.MaxRequests,
			Window:      s.deps.RateLimit.Window,
		}, s.deps.Logger, s.deps.Metrics))
	}
}

func (s *Server) registerRoutes() {
	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.Links,
		BaseURL:     s.deps.Server.BaseURL,
	})
	apiHandler.Register(s.app)

	// Registered last: /:code would otherwise shadow the API.
	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:   s.deps.Logger,
		Recorder: s.deps.Recorder,
	})
	redirectHandler.Register(s.app)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
