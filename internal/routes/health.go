package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agrihub/agrihub/internal/session"
)

// RegisterHealthRoutes adds the banner, liveness and session probe endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Backend API is running...")
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		healthy := true

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		record := func(name string, err error) {
			if err != nil {
				d.Logger.Warn("health check failed", "backend", name, "error", err)
				checks[name] = "unavailable"
				healthy = false
				return
			}
			checks[name] = "ok"
		}
		if d.Mongo != nil {
			record("mongo", d.Mongo.Client().Ping(ctx, nil))
		}
		if d.DB != nil {
			record("postgres", d.DB.Ping(ctx))
		}
		if d.Cache != nil {
			record("redis", d.Cache.Ping(ctx).Err())
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    checks,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	app.Get("/api/check-session", func(c *fiber.Ctx) error {
		sess, ok := session.FromContext(c)
		if !ok {
			return c.JSON(fiber.Map{"sessionData": nil})
		}
		return c.JSON(fiber.Map{"sessionData": fiber.Map{"user": sess.User, "expiresAt": sess.ExpiresAt}})
	})
}
