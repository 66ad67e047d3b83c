package handlers

import (
	"errors"
	"fmt"
	"testing"

	"market/internal/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.InvalidQuantity(0), fiber.StatusBadRequest},
		{apperr.InvalidMetadata(errors.New("bad")), fiber.StatusBadRequest},
		{apperr.NotFound("order", "o-1"), fiber.StatusNotFound},
		{apperr.Unauthorized("order.read"), fiber.StatusForbidden},
		{apperr.InsufficientStock("p-1", "Laptop", 0), fiber.StatusConflict},
		{apperr.EmptyCart(), fiber.StatusConflict},
		{apperr.OrderLocked("cancelled"), fiber.StatusConflict},
		{apperr.DuplicateOpenPayment("o-1"), fiber.StatusConflict},
		{apperr.InvalidStateTransition("payment", "failed", "completed"), fiber.StatusConflict},
		{apperr.ForbiddenSensitiveData([]string{"cvv"}), fiber.StatusUnprocessableEntity},
		{fmt.Errorf("checkout: %w", apperr.EmptyCart()), fiber.StatusConflict},
		{apperr.Internal("db down", errors.New("io")), fiber.StatusInternalServerError},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
