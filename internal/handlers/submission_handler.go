package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/queryfilter"
	"github.com/opentranscribe/scribe-backend/internal/services"
	"gorm.io/gorm"
)

type SubmissionHandler struct {
	db           *gorm.DB
	submissions  *services.SubmissionService
	queues       *services.QueueService
	aggregations *services.AggregationService
}

func NewSubmissionHandler(db *gorm.DB, submissions *services.SubmissionService, queues *services.QueueService, aggregations *services.AggregationService) *SubmissionHandler {
	return &SubmissionHandler{
		db:           db,
		submissions:  submissions,
		queues:       queues,
		aggregations: aggregations,
	}
}

func (h *SubmissionHandler) List(c *fiber.Ctx) error {
	params := c.Queries()

	q := h.db.Model(&models.Submission{})
	q, err := queryfilter.Apply(q, params, queryfilter.SubmissionFields)
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

	var subs []models.Submission
	q = queryfilter.Order(q, c.Query("ordering"), "create_time ASC", queryfilter.SubmissionFields)
	if err := q.Offset(offset).Limit(limit).Find(&subs).Error; err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.PaginatedResponse{
		Results:  subs,
		Total:    total,
		Page:     page,
		PageSize: limit,
	})
}

func (h *SubmissionHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	sub, err := h.submissions.Get(id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(sub)
}

func (h *SubmissionHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	sub, err := h.submissions.Create(&req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *SubmissionHandler) Claim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.ClaimRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return badRequest(c, "username is required")
	}

	sub, err := h.submissions.Claim(id, req.Username)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *SubmissionHandler) Unclaim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.UnclaimRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return badRequest(c, "username is required")
	}

	sub, err := h.submissions.Unclaim(id, req.Username)
	if err != nil {
		if errors.Is(err, services.ErrNotOwner) {
			return errStatus(c, fiber.StatusNotAcceptable, err)
		}
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *SubmissionHandler) Done(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.DoneRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return badRequest(c, "username is required")
	}

	sub, err := h.submissions.Done(id, req.Username, req.ModOverride)
	if err != nil {
		if errors.Is(err, services.ErrNotOwner) {
			return errStatus(c, fiber.StatusPreconditionFailed, err)
		}
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *SubmissionHandler) Approve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.ApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	approved := true
	if req.Approved != nil {
		approved = *req.Approved
	}

	sub, err := h.submissions.Approve(id, approved)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(sub)
}

func (h *SubmissionHandler) Remove(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.RemoveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	removed := true
	if req.RemovedFromQueue != nil {
		removed = *req.RemovedFromQueue
	}

	sub, err := h.submissions.Remove(id, removed)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(sub)
}

func (h *SubmissionHandler) NSFW(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.NSFWRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	nsfw := true
	if req.NSFW != nil {
		nsfw = *req.NSFW
	}

	sub, err := h.submissions.NSFW(id, nsfw)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(sub)
}

func (h *SubmissionHandler) Report(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid submission ID")
	}
	var req dto.ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	sub, err := h.submissions.Report(id, req.Reason)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

func (h *SubmissionHandler) Expired(c *fiber.Ctx) error {
	source := c.Query("source")
	if source == "" {
		return badRequest(c, "source is required")
	}
	hours, err := parseHours(c.Query("hours"))
	if err != nil {
		return serviceError(c, err)
	}
	ctq, _ := strconv.ParseBool(c.Query("ctq", "false"))

	subs, err := h.queues.Expired(source, hours, ctq)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(subs)
}

func (h *SubmissionHandler) InProgress(c *fiber.Ctx) error {
	source := c.Query("source")
	if source == "" {
		return badRequest(c, "source is required")
	}
	hours, err := parseHours(c.Query("hours"))
	if err != nil {
		return serviceError(c, err)
	}

	subs, err := h.queues.InProgress(source, hours)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(subs)
}

func (h *SubmissionHandler) Unarchived(c *fiber.Ctx) error {
	source := c.Query("source")
	if source == "" {
		return badRequest(c, "source is required")
	}
	subs, err := h.queues.Unarchived(source)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(subs)
}

func (h *SubmissionHandler) TranscribotQueue(c *fiber.Ctx) error {
	source := c.Query("source")
	if source == "" {
		return badRequest(c, "source is required")
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if raw == "none" {
			limit = -1
		} else {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return badRequest(c, "limit must be a positive integer or \"none\"")
			}
			limit = n
		}
	}

	items, err := h.queues.OCRQueue(source, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *SubmissionHandler) Yeet(c *fiber.Ctx) error {
	var req dto.YeetRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" {
		return badRequest(c, "username is required")
	}
	if req.Count == 0 {
		req.Count = 1
	}

	deleted, err := h.submissions.Yeet(req.Username, req.Count)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.YeetResponse{TotalYeeted: deleted})
}

func (h *SubmissionHandler) BulkCheck(c *fiber.Ctx) error {
	var req dto.BulkCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	remaining, err := h.submissions.BulkCheck(req.URLs)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(remaining)
}

func (h *SubmissionHandler) Rate(c *fiber.Ctx) error {
	loc, err := parseUTCOffset(c.Query("utc_offset", "0"))
	if err != nil {
		return badRequest(c, "utc_offset must be an offset in seconds")
	}
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "0"))

	buckets, total, err := h.aggregations.Rate(c.Queries(), c.Query("time_frame", "day"), loc, page, pageSize)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.PaginatedResponse{
		Results:  buckets,
		Total:    total,
		Page:     page,
		PageSize: len(buckets),
	})
}

func (h *SubmissionHandler) Heatmap(c *fiber.Ctx) error {
	loc, err := parseUTCOffset(c.Query("utc_offset", "0"))
	if err != nil {
		return badRequest(c, "utc_offset must be an offset in seconds")
	}
	cells, err := h.aggregations.Heatmap(c.Queries(), loc)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(cells)
}

func (h *SubmissionHandler) Leaderboard(c *fiber.Ctx) error {
	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid user_id")
		}
		userID = &id
	}

	topCount, _ := strconv.Atoi(c.Query("top_count", "5"))
	aboveCount, _ := strconv.Atoi(c.Query("above_count", "5"))
	belowCount, _ := strconv.Atoi(c.Query("below_count", "5"))

	resp, err := h.aggregations.Leaderboard(c.Queries(), userID, topCount, aboveCount, belowCount)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(resp)
}

// Subreddits marshals an ordered JSON object so the descending-count
// ordering survives serialization.
func (h *SubmissionHandler) Subreddits(c *fiber.Ctx) error {
	counts, err := h.aggregations.Subreddits(c.Queries())
	if err != nil {
		return serviceError(c, err)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range counts {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(sc.Subreddit)
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", sc.Count)
	}
	buf.WriteByte('}')

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(buf.Bytes())
}

func parseHours(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	h, err := strconv.ParseFloat(raw, 64)
	if err != nil || h < 0 {
		return 0, services.ErrInvalidTimeFrame
	}
	return h, nil
}

func parseUTCOffset(raw string) (*time.Location, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	if seconds == 0 {
		return time.UTC, nil
	}
	return time.FixedZone("offset", seconds), nil
}
