package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/nutritico/internal/domain"
	"github.com/mansoorceksport/nutritico/internal/middleware"
)

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownMeal):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrFastingActive),
		errors.Is(err, domain.ErrFastingInactive),
		errors.Is(err, domain.ErrDuplicateMeal):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrNoFoodDetected):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidProfile),
		errors.Is(err, domain.ErrInvalidDay),
		errors.Is(err, domain.ErrInvalidCommand),
		errors.Is(err, domain.ErrInvalidFactor),
		errors.Is(err, domain.ErrInvalidTarget),
		errors.Is(err, domain.ErrUnknownGroup),
		errors.Is(err, domain.ErrEmptyQuery):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

func failErr(c *fiber.Ctx, err error) error {
	return fail(c, errorStatus(err), err.Error())
}

// failInput reports errors caused by the request itself as 400
func failInput(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		status = fiber.StatusBadRequest
	}
	return fail(c, status, err.Error())
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// currentUser returns the authenticated user id or writes a 401
func currentUser(c *fiber.Ctx) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		_ = fail(c, fiber.StatusUnauthorized, "user not authenticated")
		return "", false
	}
	return userID, true
}
