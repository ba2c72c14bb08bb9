package handlers

import (
	"github.com/anjiri1684/lesson_billing/middleware"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/anjiri1684/lesson_billing/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PayoutHandler struct {
	payouts *services.PayoutService
}

func NewPayoutHandler(payouts *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

type CommitPayoutRequest struct {
	TeacherID   string  `json:"teacher_id" validate:"required,uuid"`
	PeriodStart string  `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string  `json:"period_end" validate:"required,datetime=2006-01-02"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

type UpdatePayoutStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=PENDING PAID"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

func (h *PayoutHandler) Preview(c *fiber.Ctx) error {
	teacherID, err := parseIDParam(c, "teacherId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	from, to, err := parseRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	preview, err := h.payouts.Preview(c.UserContext(), teacherID, middleware.OrganizationID(c), from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(preview)
}

// LessonsForDay expects ?date=YYYY-MM-DD.
func (h *PayoutHandler) LessonsForDay(c *fiber.Ctx) error {
	teacherID, err := parseIDParam(c, "teacherId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	date, err := parseDate(c.Query("date"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	lessons, err := h.payouts.GetLessonsForDay(c.UserContext(), teacherID, middleware.OrganizationID(c), date)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(lessons)
}

func (h *PayoutHandler) LessonsForRange(c *fiber.Ctx) error {
	teacherID, err := parseIDParam(c, "teacherId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	from, to, err := parseRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	lessons, err := h.payouts.GetLessonsForRange(c.UserContext(), teacherID, middleware.OrganizationID(c), from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(lessons)
}

func (h *PayoutHandler) Commit(c *fiber.Ctx) error {
	var req CommitPayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	teacherID, err := uuid.Parse(req.TeacherID)
	if err != nil {
		return badRequest(c, "invalid teacher_id format")
	}
	start, end, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.payouts.Commit(c.UserContext(), services.CommitPayoutInput{
		OrganizationID: middleware.OrganizationID(c),
		TeacherID:      teacherID,
		PeriodStart:    start,
		PeriodEnd:      end,
		Notes:          req.Notes,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// ListPayouts accepts optional ?teacher_id= and ?status= filters.
func (h *PayoutHandler) ListPayouts(c *fiber.Ctx) error {
	var filter services.PayoutFilter
	if raw := c.Query("teacher_id"); raw != "" {
		teacherID, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid teacher_id format")
		}
		filter.TeacherID = &teacherID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.PayoutStatus(raw)
		if status != models.PayoutPending && status != models.PayoutPaid {
			return badRequest(c, "invalid status")
		}
		filter.Status = &status
	}

	payouts, err := h.payouts.ListPayouts(c.UserContext(), middleware.OrganizationID(c), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(payouts)
}

func (h *PayoutHandler) GetPayout(c *fiber.Ctx) error {
	payoutID, err := parseIDParam(c, "payoutId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	payout, err := h.payouts.GetPayout(c.UserContext(), payoutID, middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(payout)
}

func (h *PayoutHandler) UpdateStatus(c *fiber.Ctx) error {
	payoutID, err := parseIDParam(c, "payoutId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req UpdatePayoutStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	payout, err := h.payouts.UpdateStatus(c.UserContext(), payoutID, middleware.OrganizationID(c), models.PayoutStatus(req.Status), req.Notes)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(payout)
}

func (h *PayoutHandler) DeletePayout(c *fiber.Ctx) error {
	payoutID, err := parseIDParam(c, "payoutId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.payouts.Delete(c.UserContext(), payoutID, middleware.OrganizationID(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
