package user

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes admin customer-management endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a user HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ListCustomers returns all non-admin users.
func (h *Handler) ListCustomers(c *fiber.Ctx) error {
	customers, err := h.service.ListCustomers(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":   "Customers retrieved successfully",
		"customers": customers,
	})
}

// DeleteCustomer removes the customer named by the :id path parameter.
func (h *Handler) DeleteCustomer(c *fiber.Ctx) error {
	err := h.service.DeleteCustomer(c.UserContext(), c.Params("id"))
	switch {
	case err == nil:
		return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Customer deleted successfully"})
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "Customer not found")
	case errors.Is(err, ErrAdminProtected):
		return fiber.NewError(http.StatusForbidden, "Cannot delete admin users")
	default:
		return err
	}
}
