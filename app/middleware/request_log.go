package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLog logs each request once the handler returns. Paths under skipPrefix
// (health probes) are logged at debug level only.
func RequestLog(logger *slog.Logger, skipPrefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if err := c.App().ErrorHandler(c, err); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		level := slog.LevelInfo
		if skipPrefix != "" && strings.HasPrefix(c.Path(), skipPrefix) {
			level = slog.LevelDebug
		}
		// for /chat the stream is still running; this marks its start
		logger.Log(c.UserContext(), level, "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"elapsed", time.Since(start),
		)
		return nil
	}
}
