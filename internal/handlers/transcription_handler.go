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

type TranscriptionHandler struct {
	db             *gorm.DB
	transcriptions *services.TranscriptionService
}

func NewTranscriptionHandler(db *gorm.DB, transcriptions *services.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{db: db, transcriptions: transcriptions}
}

func (h *TranscriptionHandler) List(c *fiber.Ctx) error {
	q := h.db.Model(&models.Transcription{})
	q, err := queryfilter.Apply(q, c.Queries(), queryfilter.TranscriptionFields)
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

	var trs []models.Transcription
	q = queryfilter.Order(q, c.Query("ordering"), "create_time ASC", queryfilter.TranscriptionFields)
	if err := q.Offset(offset).Limit(limit).Find(&trs).Error; err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.PaginatedResponse{
		Results:  trs,
		Total:    total,
		Page:     page,
		PageSize: limit,
	})
}

func (h *TranscriptionHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid transcription ID")
	}
	tr, err := h.transcriptions.Get(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(tr)
}

func (h *TranscriptionHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTranscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	tr, err := h.transcriptions.Create(&req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tr)
}

func (h *TranscriptionHandler) Search(c *fiber.Ctx) error {
	submissionID, err := uuid.Parse(c.Query("submission_id"))
	if err != nil {
		return badRequest(c, "submission_id is required")
	}
	trs, err := h.transcriptions.Search(submissionID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(trs)
}

func (h *TranscriptionHandler) ReviewRandom(c *fiber.Ctx) error {
	tr, err := h.transcriptions.ReviewRandom()
	if err != nil {
		return serviceError(c, err)
	}
	if tr == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(tr)
}
