package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_autoapprove/internal/app"
	"course_autoapprove/internal/infra/config"
	idb "course_autoapprove/internal/infra/database"
	"course_autoapprove/internal/infra/logger"
	"course_autoapprove/internal/infra/scheduler"
	"course_autoapprove/internal/infra/telegram"
	"course_autoapprove/internal/infra/tracing"
	"course_autoapprove/internal/messages"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	serviceName    = "course-autoapprove"
	serviceVersion = "1.0.0"
)

func main() {
	fmt.Println("Course request auto-approval starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg)

	if err := run(cfg); err != nil {
		logger.Log.WithError(err).Fatal("Application stopped with an error")
	}
}

func run(cfg *config.AppConfig) error {
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"bot_enabled": cfg.BotEnabled(),
		"run_once":    cfg.RunOnce,
	}).Info("Configuration loaded")

	if cfg.TracesFile != "" {
		if err := tracing.Init(serviceName, serviceVersion, cfg.TracesFile); err != nil {
			return fmt.Errorf("could not initialize tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				mainLogger.WithError(err).Warn("Failed to flush traces")
			}
		}()
		mainLogger.WithField("file", cfg.TracesFile).Info("Tracing enabled")
	}

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully")

	catalog, err := messages.Load(cfg.LangFile)
	if err != nil {
		return fmt.Errorf("could not load messages: %w", err)
	}

	// Initialize Repositories
	tables := idb.NewTables(cfg.TablePrefix)
	requestRepo := idb.NewPostgresRequestRepository(db, tables)
	enrollmentRepo := idb.NewPostgresEnrollmentRepository(db, tables)
	settingsRepo := idb.NewPostgresSettingsRepository(db, tables)
	userRepo := idb.NewPostgresUserRepository(db, tables)

	var bot *telebot.Bot
	var notifier app.Notifier
	if cfg.BotEnabled() {
		botLogger := logger.Component("telebot")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			return fmt.Errorf("could not create Telegram bot: %w", err)
		}
		notifier = app.NewRequesterNotifier(userRepo, telegram.NewTelebotAdapter(bot), catalog, logger.Component("notifier"))
		mainLogger.Info("Telegram notifier initialized")
	} else {
		notifier = app.NewLogNotifier(logger.Component("notifier"))
		mainLogger.Warn("TELEGRAM_TOKEN not set, requester notifications will only be logged")
	}

	job := app.NewRequestApprovalJob(
		app.NewNotifyingRequestStore(requestRepo, notifier),
		enrollmentRepo,
		enrollmentRepo,
		enrollmentRepo,
		catalog,
		logger.Component("approval_job"),
	)
	approvalScheduler := scheduler.NewApprovalScheduler(
		job,
		settingsRepo,
		logger.Component("scheduler"),
		catalog.Get(messages.KeyTaskName, nil),
		cfg.CronSpec,
		cfg.JobTimeout,
	)

	if cfg.RunOnce {
		_, err := approvalScheduler.RunOnce(context.Background())
		return err
	}

	if err := approvalScheduler.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if bot != nil {
		settingsService := app.NewSettingsService(settingsRepo, cfg.AdminTelegramID)
		adminHandlers := telegram.NewAdminHandlers(settingsService, approvalScheduler, catalog, logger.Component("admin_handlers"))
		telegram.RegisterAdminHandlers(ctx, bot, adminHandlers)
		telegram.RegisterBotCommands(bot, cfg, catalog, logger.Component("bot_commands"))
		mainLogger.Info("Bot command handlers registered")

		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	mainLogger.Info("Application setup complete")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	cancel()
	approvalScheduler.Stop()
	mainLogger.Info("Application shut down gracefully")
	return nil
}
