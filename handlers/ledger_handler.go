package handlers

import (
	"github.com/anjiri1684/lesson_billing/middleware"
	"github.com/anjiri1684/lesson_billing/models"
	"github.com/anjiri1684/lesson_billing/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	ledger    *services.LedgerService
	forecasts *services.ForecastService
}

func NewLedgerHandler(ledger *services.LedgerService, forecasts *services.ForecastService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, forecasts: forecasts}
}

type PostTransactionRequest struct {
	Type             string          `json:"type" validate:"required,oneof=DEPOSIT LESSON_CHARGE LESSON_REFUND CANCELLATION_FEE ADJUSTMENT REFUND"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description" validate:"max=500"`
	RelatedLessonID  *string         `json:"related_lesson_id" validate:"omitempty,uuid"`
	RelatedPaymentID *string         `json:"related_payment_id" validate:"omitempty,uuid"`
}

type AdjustBalanceRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"required,max=500"`
}

func (h *LedgerHandler) GetBalance(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	balance, err := h.ledger.GetBalance(c.UserContext(), studentID, middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(balance)
}

func (h *LedgerHandler) PostTransaction(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req PostTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Amount.IsZero() {
		return badRequest(c, "amount must not be zero")
	}

	posted, err := h.ledger.PostTransaction(c.UserContext(), services.PostTransactionInput{
		StudentID:        studentID,
		OrganizationID:   middleware.OrganizationID(c),
		Type:             models.TransactionType(req.Type),
		Amount:           req.Amount,
		Description:      req.Description,
		RelatedLessonID:  optionalUUID(req.RelatedLessonID),
		RelatedPaymentID: optionalUUID(req.RelatedPaymentID),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(posted)
}

func (h *LedgerHandler) AdjustBalance(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req AdjustBalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Amount.IsZero() {
		return badRequest(c, "amount must not be zero")
	}

	posted, err := h.ledger.AdjustBalance(c.UserContext(), studentID, middleware.OrganizationID(c), req.Amount, req.Description)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(posted)
}

func (h *LedgerHandler) ListTransactions(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := services.TransactionFilter{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 50),
	}
	if raw := c.Query("type"); raw != "" {
		txType := models.TransactionType(raw)
		if !txType.Valid() {
			return badRequest(c, "unknown transaction type")
		}
		filter.Type = &txType
	}
	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		filter.To = &to
	}

	page, err := h.ledger.ListTransactions(c.UserContext(), studentID, middleware.OrganizationID(c), filter)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(page)
}

func (h *LedgerHandler) GetForecast(c *fiber.Ctx) error {
	studentID, err := parseIDParam(c, "studentId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	forecast, err := h.forecasts.ForecastBalance(c.UserContext(), studentID, middleware.OrganizationID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(forecast)
}

// optionalUUID parses a uuid already checked by the validator.
func optionalUUID(raw *string) *uuid.UUID {
	if raw == nil || *raw == "" {
		return nil
	}
	id := uuid.MustParse(*raw)
	return &id
}
