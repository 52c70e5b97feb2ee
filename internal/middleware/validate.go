package middleware

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	validatedKey   = "validated"
	queryParamsKey = "queryParams"
)

var validate = validator.New()

// ValidateRequest parses the request body into a fresh T per request,
// validates it and stores it in the context.
func ValidateRequest[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := new(T)
		if err := c.BodyParser(s); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
				"msg":   err.Error(),
			})
		}

		if fields, err := check(s); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Validation failed",
				"fields": fields,
			})
		}

		c.Locals(validatedKey, s)
		return c.Next()
	}
}

// ValidateQueryParams parses the query string into a fresh T per request,
// validates it and stores it in the context.
func ValidateQueryParams[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := new(T)
		if err := c.QueryParser(s); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid query parameters",
				"msg":   err.Error(),
			})
		}

		if fields, err := check(s); err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":  "Invalid query parameters",
				"fields": fields,
			})
		}

		c.Locals(queryParamsKey, s)
		return c.Next()
	}
}

// Validated returns the body stored by ValidateRequest.
func Validated[T any](c *fiber.Ctx) *T {
	s, _ := c.Locals(validatedKey).(*T)
	return s
}

// QueryParams returns the query stored by ValidateQueryParams.
func QueryParams[T any](c *fiber.Ctx) *T {
	s, _ := c.Locals(queryParamsKey).(*T)
	return s
}

func check(s any) (map[string]string, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}

	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields, err
}
