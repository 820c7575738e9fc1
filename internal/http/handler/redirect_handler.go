package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkguard/internal/app/service"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Recorder *service.ClickRecorder
}

// RedirectHandler resolves short codes and records clicks.
type RedirectHandler struct {
	logger   *zap.Logger
	recorder *service.ClickRecorder
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		recorder: deps.Recorder,
	}
}

// Register wires redirect routes onto the provided router. It must run after the API routes.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
}

// Health is a simple endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "linkguard",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if !service.ValidCode(code) {
		return respondError(c, h.logger, service.ErrNotFound, "resolve")
	}

	link, err := h.recorder.RecordClick(requestContext(c), code, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return respondError(c, h.logger, err, "resolve")
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", link.URL))
	return c.Redirect(link.URL, fiber.StatusFound)
}
