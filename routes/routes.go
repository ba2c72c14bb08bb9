package routes

import (
	"github.com/anjiri1684/lesson_billing/handlers"
	"github.com/anjiri1684/lesson_billing/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Ledger      *handlers.LedgerHandler
	Settlements *handlers.SettlementHandler
	Payouts     *handlers.PayoutHandler
}

// Setup mounts the billing API under /api/v1. Every API call is scoped to the organization
// in the caller's token.
func Setup(app *fiber.App, jwtSecret string, h Handlers) {
	SystemRoutes(app)

	api := app.Group("/api/v1", middleware.Protected(jwtSecret), middleware.OrganizationScope())
	LedgerRoutes(api, h.Ledger)
	SettlementRoutes(api, h.Settlements)
	PayoutRoutes(api, h.Payouts)
}

func SystemRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func LedgerRoutes(api fiber.Router, h *handlers.LedgerHandler) {
	students := api.Group("/students/:studentId")
	students.Get("/balance", h.GetBalance)
	students.Get("/transactions", h.ListTransactions)
	students.Post("/transactions", h.PostTransaction)
	students.Post("/adjustments", h.AdjustBalance)
	students.Get("/forecast", h.GetForecast)
}

func SettlementRoutes(api fiber.Router, h *handlers.SettlementHandler) {
	api.Get("/settlements/students", h.ListStudentsWithBalance)
	api.Get("/settlements/:settlementId", h.GetSettlement)
	api.Delete("/settlements/:settlementId", h.DeleteSettlement)

	students := api.Group("/students/:studentId/settlements")
	students.Get("", h.ListSettlements)
	students.Get("/preview", h.Preview)
	students.Get("/first-start", h.FirstSettlementStart)
	students.Post("", h.Commit)
}

func PayoutRoutes(api fiber.Router, h *handlers.PayoutHandler) {
	teachers := api.Group("/teachers/:teacherId")
	teachers.Get("/payouts/preview", h.Preview)
	teachers.Get("/lessons/day", h.LessonsForDay)
	teachers.Get("/lessons/range", h.LessonsForRange)

	payouts := api.Group("/payouts")
	payouts.Post("", h.Commit)
	payouts.Get("", h.ListPayouts)
	payouts.Get("/:payoutId", h.GetPayout)
	payouts.Patch("/:payoutId/status", h.UpdateStatus)
	payouts.Delete("/:payoutId", h.DeletePayout)
}
