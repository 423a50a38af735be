package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/services"
)

// checkActions maps wire action names to target check statuses.
var checkActions = map[string]models.CheckStatus{
	"approved":         models.CheckApproved,
	"comment-pending":  models.CheckCommentPending,
	"comment-resolved": models.CheckCommentResolved,
	"comment-unfixed":  models.CheckCommentUnfixed,
	"warning-pending":  models.CheckWarningPending,
	"warning-resolved": models.CheckWarningResolved,
	"warning-unfixed":  models.CheckWarningUnfixed,
	"pending":          models.CheckPending,
}

type CheckHandler struct {
	checks *services.CheckService
}

func NewCheckHandler(checks *services.CheckService) *CheckHandler {
	return &CheckHandler{checks: checks}
}

func (h *CheckHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid check ID")
	}
	check, err := h.checks.Get(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(check)
}

func (h *CheckHandler) Claim(c *fiber.Ctx) error {
	id, req, err := h.parse(c)
	if err != nil {
		return err
	}
	check, err := h.checks.Claim(id, req.Username)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(check)
}

func (h *CheckHandler) Unclaim(c *fiber.Ctx) error {
	id, req, err := h.parse(c)
	if err != nil {
		return err
	}
	check, err := h.checks.Unclaim(id, req.Username)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(check)
}

func (h *CheckHandler) SetStatus(c *fiber.Ctx) error {
	target, ok := checkActions[c.Params("action")]
	if !ok {
		return badRequest(c, "Unknown check action")
	}
	id, req, err := h.parse(c)
	if err != nil {
		return err
	}
	check, err := h.checks.SetStatus(id, req.Username, target)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(check)
}

func (h *CheckHandler) parse(c *fiber.Ctx) (uuid.UUID, *dto.CheckActionRequest, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, nil, badRequest(c, "Invalid check ID")
	}
	var req dto.CheckActionRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return uuid.Nil, nil, badRequest(c, "username is required")
	}
	return id, &req, nil
}
