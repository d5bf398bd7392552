package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghadeerreda0-lab/Bot-New/internal/config"
	"github.com/ghadeerreda0-lab/Bot-New/internal/database"
	"github.com/ghadeerreda0-lab/Bot-New/internal/handlers"
	"github.com/ghadeerreda0-lab/Bot-New/internal/intake"
	"github.com/ghadeerreda0-lab/Bot-New/internal/metrics"
	"github.com/ghadeerreda0-lab/Bot-New/internal/middleware"
	"github.com/ghadeerreda0-lab/Bot-New/internal/scheduler"
	"github.com/ghadeerreda0-lab/Bot-New/internal/services"
	"github.com/ghadeerreda0-lab/Bot-New/pkg/logger"
	"github.com/ghadeerreda0-lab/Bot-New/telegram"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize logger
	logger.Init()
	defer logger.Sync()

	logger.Info("Starting cash bot...")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}

	// Validate production security settings
	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	// Run GORM auto-migration
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := database.SeedCommissionSettings(db, cfg.Referral, time.Now().UTC()); err != nil {
		logger.Fatal("Failed to seed commission settings", err)
	}

	m := metrics.Ledger()
	allocator := services.NewAllocator(db, m)
	ledger := services.NewLedger(db, allocator, cfg.Payments, m)
	referrals := services.NewReferralService(db, ledger, cfg.Referral, m)
	ledger.SetDepositObserver(referrals)
	matcher := services.NewMatcher(db, services.NewParser(), ledger, m)
	reports := services.NewReportService(db, allocator)

	svc := handlers.Services{
		Allocator: allocator,
		Ledger:    ledger,
		Payments:  services.NewPaymentService(ledger, services.NewAccountDirectory(db), cfg.Payments, []byte(cfg.AESKey)),
		Referrals: referrals,
		Gifts:     services.NewGiftService(db, ledger, cfg.Payments),
		Matcher:   matcher,
		Reports:   reports,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerUser, cfg.RateLimitPerIP, time.Minute)
	defer limiter.Stop()

	// Initialize and start Telegram bot
	bot, err := telegram.InitBot(cfg, db, svc, limiter)
	if err != nil {
		logger.Fatal("Failed to initialize bot", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := intake.New(intake.Config{
		Addr:      ":" + cfg.AppPort,
		JWTSecret: cfg.JWTSecret,
		Matcher:   matcher,
		Ledger:    ledger,
		Limiter:   limiter,
		Metrics:   m,
		Notifier:  bot.Notifier(),
	})
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe(ctx)
	}()

	jobs, err := scheduler.New(scheduler.Config{
		Settler:            referrals,
		SettlementInterval: cfg.GetSettlementCheckInterval(),
		Expirer:            ledger,
		DepositTTL:         cfg.GetDepositPendingTTL(),
		Reporter:           reports,
		Notifier:           bot.Notifier(),
	})
	if err != nil {
		logger.Fatal("Failed to create scheduler", err)
	}
	jobs.Start()

	logger.Info("Bot started successfully", "env", cfg.AppEnv, "port", cfg.AppPort, "jobs", jobs.JobNames())

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("Intake server stopped", "error", err)
		}
	}

	logger.Info("Shutting down gracefully...")
	stop()
	bot.Stop()
	if err := jobs.Shutdown(); err != nil {
		logger.Error("Scheduler shutdown failed", "error", err)
	}
	logger.Info("Bot stopped")
}
