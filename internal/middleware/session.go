package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agrihub/agrihub/internal/session"
)

// Session resolves the session cookie and attaches the session to the
// request. Anonymous requests pass through untouched; a failing store is
// logged and the request continues as anonymous.
func Session(mgr *session.Manager, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := mgr.Load(c)
		switch {
		case err == nil:
			session.Attach(c, sess)
		case errors.Is(err, session.ErrNotFound):
		default:
			logger.Error("session lookup failed", slog.Any("error", err))
		}
		return c.Next()
	}
}

// RequireUser rejects requests without a logged-in session.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := session.FromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, "Unauthorized. Please log in.")
		}
		return c.Next()
	}
}

// RequireAdmin rejects requests whose session does not belong to an admin.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, ok := session.FromContext(c)
		if !ok || !sess.User.IsAdmin {
			return fiber.NewError(http.StatusForbidden, "Unauthorized: Admin access required")
		}
		return c.Next()
	}
}
