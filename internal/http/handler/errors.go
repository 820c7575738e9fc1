package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkguard/internal/app/service"
	"go.uber.org/zap"
)

// respondError maps service errors onto HTTP statuses. Anything unrecognised is logged
// and reported as a generic 500.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error, op string) error {
	var (
		verr *service.ValidationError
		spam *service.SpamRejectedError
	)

	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "invalid request",
			"fields": verr.Fields,
		})
	case errors.As(err, &spam):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":  "request rejected",
			"reason": spam.Reason,
		})
	case errors.Is(err, service.ErrIPBlocked):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "ip address is blocked due to suspicious activity",
		})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "not authorized to modify this link",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short link not found",
		})
	case errors.Is(err, service.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "short code already exists",
		})
	}

	logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
