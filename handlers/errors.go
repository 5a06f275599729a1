package handlers

import (
	"errors"

	"progression-service/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps the service error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrMissingParameter),
		errors.Is(err, services.ErrInvalidAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrUnknownUser),
		errors.Is(err, services.ErrUnknownPath):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrUnknownLevel):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConcurrencyConflict),
		errors.Is(err, services.ErrRefreshInFlight):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func errJSON(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
