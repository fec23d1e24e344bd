package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// FiberMiddleware puts a request scoped logger into the user context.
// It must run after the requestid middleware.
func FiberMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID, _ := c.Locals("requestid").(string)
		ctx := WithRequestID(c.UserContext(), requestID)
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()

		Debug(ctx).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("request completed")

		return err
	}
}
