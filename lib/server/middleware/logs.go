package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start_time := time.Now()

		request_attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
		}

		err := c.Next()

		status_code := c.Response().StatusCode()
		attrs := append(request_attrs,
			slog.Int("status_code", status_code),
			slog.Duration("response_time", time.Since(start_time)),
		)
		if empire_id, ok := c.Locals(empireIDKey).(string); ok {
			attrs = append(attrs, slog.String("empire_id", empire_id))
		}

		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			slog.LogAttrs(context.Background(), slog.LevelError, "Request error", attrs...)
		case status_code >= fiber.StatusInternalServerError:
			slog.LogAttrs(context.Background(), slog.LevelWarn, "Request failed", attrs...)
		default:
			slog.LogAttrs(context.Background(), slog.LevelInfo, "Request processed", attrs...)
		}
		return err
	}
}
