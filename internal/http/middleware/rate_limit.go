package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkguard/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkguard/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	// Endpoint names the bucket a request is counted in. Defaults to EndpointName.
	Endpoint func(c *fiber.Ctx) string
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
		Endpoint:    EndpointName,
	}
}

// EndpointName buckets requests into link creation, other API calls and redirects.
func EndpointName(c *fiber.Ctx) string {
	path := c.Path()
	switch {
	case c.Method() == fiber.MethodPost && strings.TrimRight(path, "/") == "/api/links":
		return "create"
	case strings.HasPrefix(path, "/api/"):
		return "api"
	default:
		return "redirect"
	}
}

// RateLimit creates a per IP and endpoint rate limiting middleware backed by Redis.
func RateLimit(windows repository.RateWindowRepository, config RateLimitConfig, logger *zap.Logger, metrics *infraPrometheus.Metrics) fiber.Handler {
	defaults := DefaultRateLimitConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Endpoint == nil {
		config.Endpoint = defaults.Endpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		ip := c.IP()
		endpoint := config.Endpoint(c)

		window, err := windows.Hit(c.UserContext(), ip, endpoint, config.Window)
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			// Fail open: allow request if Redis is unavailable
			return c.Next()
		}

		remaining := config.MaxRequests - int(window.Count)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(window.WindowStart.Add(config.Window).Unix(), 10))

		if window.Count > int64(config.MaxRequests) {
			metrics.IncRateLimitRejections(endpoint)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		return c.Next()
	}
}
