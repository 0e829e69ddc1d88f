package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agrihub/agrihub/internal/session"
	"github.com/agrihub/agrihub/internal/user"
	"github.com/agrihub/agrihub/internal/validation"
)

const msgOTPSent = "OTP sent to your mobile. Please verify."

var mobileMessages = validation.Messages{
	"Mobile":    "Mobile number must be 10 digits",
	"FirstName": "First name is too long",
	"LastName":  "Last name is too long",
	"OTP":       "OTP is required",
}

// Handler exposes registration, login and session endpoints.
type Handler struct {
	svc      *Service
	users    *user.Service
	sessions *session.Manager
	logger   *slog.Logger
}

// NewHandler builds the auth HTTP handler.
func NewHandler(svc *Service, users *user.Service, sessions *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, users: users, sessions: sessions, logger: logger}
}

type registerRequest struct {
	FirstName string `json:"firstName" validate:"omitempty,max=100"`
	LastName  string `json:"lastName" validate:"omitempty,max=100"`
	Mobile    string `json:"mobile" validate:"mobile"`
}

type mobileRequest struct {
	Mobile string `json:"mobile" validate:"mobile"`
}

type verifyRequest struct {
	Mobile string `json:"mobile" validate:"required"`
	OTP    string `json:"otp" validate:"required"`
}

// Register starts registration by sending an OTP.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := validation.BindAndValidate(c, &req, mobileMessages); err != nil {
		return err
	}
	err := h.svc.RequestRegistration(c.UserContext(), RegistrationInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Mobile:    req.Mobile,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": msgOTPSent})
}

// VerifyRegister completes registration.
func (h *Handler) VerifyRegister(c *fiber.Ctx) error {
	var req verifyRequest
	if err := validation.BindAndValidate(c, &req, validation.Messages{"Mobile": "Invalid OTP", "OTP": "Invalid OTP"}); err != nil {
		return err
	}
	created, err := h.svc.VerifyRegistration(c.UserContext(), req.Mobile, req.OTP)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully",
		"user":    created,
	})
}

// Login starts login by sending an OTP.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req mobileRequest
	if err := validation.BindAndValidate(c, &req, mobileMessages); err != nil {
		return err
	}
	if err := h.svc.RequestLogin(c.UserContext(), req.Mobile); err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": msgOTPSent})
}

// VerifyLogin checks the OTP and opens a session.
func (h *Handler) VerifyLogin(c *fiber.Ctx) error {
	var req verifyRequest
	if err := validation.BindAndValidate(c, &req, validation.Messages{"Mobile": "Invalid OTP", "OTP": "Invalid OTP"}); err != nil {
		return err
	}
	u, err := h.svc.VerifyLogin(c.UserContext(), req.Mobile, req.OTP)
	if err != nil {
		return toHTTPError(err)
	}
	sess, err := h.sessions.Start(c, session.User{ID: u.ID, Mobile: u.Mobile, IsAdmin: u.IsAdmin})
	if err != nil {
		return err
	}
	h.logger.Info("user logged in", "user_id", u.ID, "is_admin", u.IsAdmin)
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Login successful",
		"user":    sess.User,
	})
}

// Logout destroys the current session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Destroy(c); err != nil {
		h.logger.Error("session destruction failed", "error", err)
		return fiber.NewError(http.StatusInternalServerError, "Logout failed")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out successfully"})
}

// Profile returns the stored record of the logged-in user.
func (h *Handler) Profile(c *fiber.Ctx) error {
	sess, ok := session.FromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized. Please log in.")
	}
	u, err := h.users.Get(c.UserContext(), sess.User.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "User not found")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(u)
}

// Details returns the identity held in the session without a database read.
func (h *Handler) Details(c *fiber.Ctx) error {
	sess, ok := session.FromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "Unauthorized")
	}
	return c.Status(http.StatusOK).JSON(sess.User)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidMobile):
		return fiber.NewError(http.StatusBadRequest, "Mobile number must be 10 digits")
	case errors.Is(err, ErrAlreadyRegistered):
		return fiber.NewError(http.StatusBadRequest, "Mobile number already registered")
	case errors.Is(err, ErrNotRegistered):
		return fiber.NewError(http.StatusUnauthorized, "Mobile number not registered")
	case errors.Is(err, ErrInvalidOTP):
		return fiber.NewError(http.StatusBadRequest, "Invalid OTP")
	case errors.Is(err, ErrOTPExpired):
		return fiber.NewError(http.StatusBadRequest, "OTP expired. Please request a new one.")
	case errors.Is(err, ErrTooManyAttempts):
		return fiber.NewError(http.StatusBadRequest, "Too many attempts. Please request a new OTP.")
	case errors.Is(err, ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "User not found")
	default:
		return err
	}
}
