package main

import (
	"log/slog"
	"os"
	"time"

	config "github.com/anjiri1684/lesson_billing/configs"
	"github.com/anjiri1684/lesson_billing/database"
	"github.com/anjiri1684/lesson_billing/handlers"
	"github.com/anjiri1684/lesson_billing/jobs"
	"github.com/anjiri1684/lesson_billing/logging"
	"github.com/anjiri1684/lesson_billing/notifications"
	"github.com/anjiri1684/lesson_billing/routes"
	"github.com/anjiri1684/lesson_billing/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("Database unavailable", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}

	settings := services.Settings{
		DefaultCurrency:   cfg.DefaultCurrency,
		MaxCommitAttempts: cfg.CommitMaxAttempts,
	}
	ledger := services.NewLedgerService(db, settings)
	forecasts := services.NewForecastService(db, ledger, settings)
	settlements := services.NewSettlementService(db, settings)
	payouts := services.NewPayoutService(db, settings)

	c := cron.New()
	lowBalance := jobs.NewLowBalanceJob(forecasts, notifications.New(cfg), cfg.LowBalanceLessons)
	if _, err := lowBalance.Schedule(c, cfg.LowBalanceCron); err != nil {
		slog.Error("Invalid LOW_BALANCE_CRON", "spec", cfg.LowBalanceCron, "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()
	slog.Info("Cron job for low balance notices scheduled", "spec", cfg.LowBalanceCron)

	app := fiber.New(fiber.Config{
		AppName:       "Lesson Billing",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			slog.Error("Unhandled request error", "error", err, "path", c.Path(), "method", c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		AllowMethods:  "GET, POST, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "UTC",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.Setup(app, cfg.JWTSecret, routes.Handlers{
		Ledger:      handlers.NewLedgerHandler(ledger, forecasts),
		Settlements: handlers.NewSettlementHandler(settlements),
		Payouts:     handlers.NewPayoutHandler(payouts),
	})

	slog.Info("Server is running", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
