package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agrihub/agrihub/internal/auth"
	"github.com/agrihub/agrihub/internal/middleware"
	"github.com/agrihub/agrihub/internal/user"
)

// RegisterUserRoutes wires the /api/users endpoints: OTP registration and
// login, session-backed profile reads and admin customer management.
func RegisterUserRoutes(r fiber.Router, h *auth.Handler, customers *user.Handler, otpLimiter fiber.Handler) {
	group := r.Group("/users")

	if otpLimiter != nil {
		group.Post("/register", otpLimiter, h.Register)
		group.Post("/login", otpLimiter, h.Login)
	} else {
		group.Post("/register", h.Register)
		group.Post("/login", h.Login)
	}
	group.Post("/verify-register", h.VerifyRegister)
	group.Post("/verify-login", h.VerifyLogin)
	group.Post("/logout", h.Logout)

	group.Get("/profile", middleware.RequireUser(), h.Profile)
	group.Get("/details", middleware.RequireUser(), h.Details)

	admin := group.Group("/customers", middleware.RequireAdmin())
	admin.Get("/", customers.ListCustomers)
	admin.Delete("/:id", customers.DeleteCustomer)
}
