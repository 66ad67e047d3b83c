package handlers

import (
	"errors"
	"fmt"

	"market/internal/apperr"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:             fiber.StatusBadRequest,
	apperr.KindInvalidQuantity:        fiber.StatusBadRequest,
	apperr.KindInvalidMetadata:        fiber.StatusBadRequest,
	apperr.KindNotFound:               fiber.StatusNotFound,
	apperr.KindUnauthorized:           fiber.StatusForbidden,
	apperr.KindInsufficientStock:      fiber.StatusConflict,
	apperr.KindEmptyCart:              fiber.StatusConflict,
	apperr.KindOrderLocked:            fiber.StatusConflict,
	apperr.KindDuplicateOpenPayment:   fiber.StatusConflict,
	apperr.KindInvalidStateTransition: fiber.StatusConflict,
	apperr.KindForbiddenSensitiveData: fiber.StatusUnprocessableEntity,
}

// statusFor maps a service error onto an HTTP status. Untyped errors are 500.
func statusFor(err error) int {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		if status, ok := statusByKind[appErr.Kind]; ok {
			return status
		}
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as a JSON body. Typed errors expose their kind and
// whatever context fields they carry. Internal errors are logged and hidden.
func respondError(c *fiber.Ctx, logger *zap.Logger, message string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error(message, zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(fiber.Map{
			"message": message,
			"error":   "internal server error",
		})
	}

	body := fiber.Map{
		"message": message,
		"error":   err.Error(),
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body["kind"] = appErr.Kind
		if appErr.ProductID != "" {
			body["product_id"] = appErr.ProductID
			body["available"] = appErr.Available
		}
		if appErr.State != "" {
			body["state"] = appErr.State
		}
		if appErr.From != "" || appErr.To != "" {
			body["from"] = appErr.From
			body["to"] = appErr.To
		}
		if len(appErr.Fields) > 0 {
			body["fields"] = appErr.Fields
		}
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validateBody runs struct validation and renders failures field by field.
// It returns true when a response has already been written.
func validateBody(c *fiber.Ctx, validate *validator.Validate, v any) (bool, error) {
	err := validate.Struct(v)
	if err == nil {
		return false, nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return true, badRequest(c, err)
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
