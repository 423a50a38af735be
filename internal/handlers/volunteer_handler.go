package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/queryfilter"
	"github.com/opentranscribe/scribe-backend/internal/services"
	"gorm.io/gorm"
)

type VolunteerHandler struct {
	db             *gorm.DB
	volunteers     *services.VolunteerService
	transcriptions *services.TranscriptionService
}

func NewVolunteerHandler(db *gorm.DB, volunteers *services.VolunteerService, transcriptions *services.TranscriptionService) *VolunteerHandler {
	return &VolunteerHandler{db: db, volunteers: volunteers, transcriptions: transcriptions}
}

func (h *VolunteerHandler) List(c *fiber.Ctx) error {
	q := h.db.Model(&models.User{})
	q, err := queryfilter.Apply(q, c.Queries(), queryfilter.UserFields)
	if err != nil {
		return serviceError(c, err)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return serviceError(c, err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "0"))
	offset, limit := queryfilter.Page(page, pageSize)

	var users []models.User
	q = queryfilter.Order(q, c.Query("ordering"), "join_time ASC", queryfilter.UserFields)
	if err := q.Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.PaginatedResponse{
		Results:  users,
		Total:    total,
		Page:     page,
		PageSize: limit,
	})
}

func (h *VolunteerHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateVolunteerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	user, err := h.volunteers.Create(req.Username)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *VolunteerHandler) Summary(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return badRequest(c, "username is required")
	}

	user, err := h.volunteers.GetByUsername(username)
	if err != nil {
		return serviceError(c, err)
	}
	gamma, err := h.volunteers.Gamma(user.ID)
	if err != nil {
		return serviceError(c, err)
	}
	recent, err := h.volunteers.RecentActivity(user.ID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.VolunteerSummary{
		Username:       user.Username,
		Gamma:          gamma,
		Rank:           services.Rank(gamma),
		RecentActivity: recent,
		JoinTime:       user.JoinTime,
		AcceptedCoC:    user.AcceptedCoC,
		Blocked:        user.Blocked,
	})
}

func (h *VolunteerHandler) AcceptCoC(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return badRequest(c, "username is required")
	}
	user, err := h.volunteers.AcceptCoC(username)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(user)
}

func (h *VolunteerHandler) GammaPlusOne(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}
	tr, err := h.transcriptions.GammaPlusOne(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tr)
}
