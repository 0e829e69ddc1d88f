// Package validation checks request payloads with go-playground/validator and
// turns failures into 400 responses.
package validation

import (
	"errors"
	"net/http"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var mobilePattern = regexp.MustCompile(`^\d{10}$`)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the custom "mobile" tag registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
			return mobilePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// ValidMobile reports whether mobile is exactly ten digits.
func ValidMobile(mobile string) bool {
	return mobilePattern.MatchString(mobile)
}

// Messages maps "Field.tag" to the client-facing message for that failure.
type Messages map[string]string

// BindAndValidate parses the JSON body into payload and validates it. The
// first failing field decides the message; unmapped failures fall back to a
// generic one.
func BindAndValidate(c *fiber.Ctx, payload any, messages Messages) error {
	if err := c.BodyParser(payload); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if err := Validator().Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			if msg, ok := messages[first.Field()+"."+first.Tag()]; ok {
				return fiber.NewError(http.StatusBadRequest, msg)
			}
			if msg, ok := messages[first.Field()]; ok {
				return fiber.NewError(http.StatusBadRequest, msg)
			}
			return fiber.NewError(http.StatusBadRequest, first.Field()+" is invalid")
		}
		return fiber.NewError(http.StatusBadRequest, "Validation failed")
	}
	return nil
}
