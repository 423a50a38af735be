package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/queryfilter"
	"github.com/opentranscribe/scribe-backend/internal/services"
)

// StatusTooManyClaims is the non-standard code for claims beyond the
// per-gamma cap.
const StatusTooManyClaims = 460

// serviceError maps service error kinds to wire statuses. NotOwner is
// operation-dependent (406 on unclaim, 412 on done) and handled by the
// caller before falling through here.
func serviceError(c *fiber.Ctx, err error) error {
	var claimed *services.AlreadyClaimedError
	var tooMany *services.TooManyClaimsError

	switch {
	case errors.As(err, &claimed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":      true,
			"message":    claimed.Error(),
			"claimed_by": claimed.Claimant,
		})
	case errors.As(err, &tooMany):
		return c.Status(StatusTooManyClaims).JSON(fiber.Map{
			"error":   true,
			"message": tooMany.Error(),
			"claims":  tooMany.Claims,
		})
	case errors.Is(err, services.ErrBlocked):
		return errStatus(c, fiber.StatusLocked, err)
	case errors.Is(err, services.ErrCoCRequired):
		return errStatus(c, fiber.StatusForbidden, err)
	case errors.Is(err, services.ErrNotFound):
		return errStatus(c, fiber.StatusNotFound, err)
	case errors.Is(err, services.ErrAlreadyDone):
		return errStatus(c, fiber.StatusConflict, err)
	case errors.Is(err, services.ErrNotClaimed), errors.Is(err, services.ErrCheckNotClaimed):
		return errStatus(c, fiber.StatusPreconditionFailed, err)
	case errors.Is(err, services.ErrTranscriptionMissing):
		return errStatus(c, fiber.StatusPreconditionRequired, err)
	case errors.Is(err, services.ErrDuplicateUser):
		return errStatus(c, fiber.StatusUnprocessableEntity, err)
	case errors.Is(err, services.ErrSelfReview),
		errors.Is(err, services.ErrCheckOwnership),
		errors.Is(err, services.ErrCheckTransition):
		return errStatus(c, fiber.StatusConflict, err)
	case errors.Is(err, services.ErrInvalidTimeFrame),
		errors.Is(err, services.ErrMissingField),
		errors.Is(err, queryfilter.ErrBadFilter):
		return errStatus(c, fiber.StatusBadRequest, err)
	}

	slog.Error("unhandled service error", "path", c.Path(), "error", err)
	return errStatus(c, fiber.StatusInternalServerError, errors.New("internal server error"))
}

func errStatus(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}
