package handlers

import (
	"github.com/anjiri1684/lesson_billing/middleware"
	"github.com/anjiri1684/lesson_billing/services"
	"github.com/gofiber/fiber/v2"
)

type SettlementHandler struct {
	settlements *services.SettlementService
}

func NewSettlementHandler(settlements *services.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlements: settlements}
}

type CommitSettlementRequest struct {
	PeriodStart string  `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string  `json:"period_end" validate:"required,datetime=2006-01-02"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

func (h *SettlementHandler) ListStudentsWithBalance(c *fiber.Ctx) error {
	summaries, err := h.settlements.ListStudentsWithBalance(c.UserContext(), middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(summaries)
}

func (h *SettlementHandler) ListSettlements(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	settlements, err := h.settlements.ListSettlements(c.UserContext(), studentID, middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(settlements)
}

// Preview expects ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *SettlementHandler) Preview(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}
	from, to, err := parseRange(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	preview, err := h.settlements.Preview(c.UserContext(), studentID, middleware.OrganizationID(c), from, to)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(preview)
}

func (h *SettlementHandler) FirstSettlementStart(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	start, err := h.settlements.ForecastFirstSettlementStart(c.UserContext(), studentID, middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"period_start": start})
}

func (h *SettlementHandler) Commit(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req CommitSettlementRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	start, end, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.settlements.Commit(c.UserContext(), services.CommitSettlementInput{
		StudentID:      studentID,
		OrganizationID: middleware.OrganizationID(c),
		PeriodStart:    start,
		PeriodEnd:      end,
		Notes:          req.Notes,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *SettlementHandler) GetSettlement(c *fiber.Ctx) error {
	settlementID, err := parseIDParam(c, "settlementId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	settlement, err := h.settlements.GetSettlement(c.UserContext(), settlementID, middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(settlement)
}

func (h *SettlementHandler) DeleteSettlement(c *fiber.Ctx) error {
	settlementID, err := parseIDParam(c, "settlementId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.settlements.DeleteMostRecent(c.UserContext(), settlementID, middleware.OrganizationID(c)); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
