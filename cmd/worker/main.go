// Package main - точка входа фоновых процессов (Worker) движка расписаний.
//
// Worker отвечает за периодические задачи:
// - Рассылка напоминаний о занятиях (за сутки и за час)
// - Уведомления об отсутствующих после завершённых занятий
// - Аудит расписания на дубликаты ключей занятий
//
// Все рассылки идемпотентны: реестр автоматизации занятия хранит отметку
// об отправке, поэтому перезапуск Worker не приводит к повторным сообщениям.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bilim-crm/bilim-session-engine/config"
	"github.com/bilim-crm/bilim-session-engine/internal/application/command"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/external/telegram"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/messaging"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/persistence/postgres"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/scheduler"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/scheduler/jobs"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/service"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting Bilim session engine worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to do (set SCHEDULER_ENABLED=true)")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ (Worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS И РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	eventBusConfig := messaging.DefaultConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = false // в Worker события обрабатываются синхронно
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() { _ = eventBus.Close() }()

	sessionRepo := postgres.NewSessionRepository(dbConn)
	recorder := command.NewRecordAutomationEventHandler(sessionRepo, eventBus)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. TELEGRAM NOTIFIER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Telegram.Disabled {
		return fmt.Errorf("telegram delivery is disabled, worker has no delivery channel")
	}

	log.Info("initializing telegram notifier...")
	tgConfig := telegram.DefaultClientConfig(cfg.Telegram.Token)
	tgConfig.Timeout = cfg.Telegram.RequestTimeout
	tgConfig.Logger = log
	tgClient := telegram.NewClient(tgConfig)

	resolver := service.StaticChatResolver(cfg.Telegram.GroupChats)
	notifier := service.NewTelegramNotifier(tgClient, resolver, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER И ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.Timezone = cfg.App.Location
	sched := scheduler.NewScheduler(schedConfig)

	if cfg.Features.RemindersEnabled(nil) {
		reminderJob := jobs.NewReminderDispatchJob(
			sessionRepo,
			notifier,
			recorder,
			log,
			jobs.ReminderDispatchConfig{
				DayLead:  cfg.Scheduler.ReminderDayLead,
				HourLead: cfg.Scheduler.ReminderHourLead,
				Timeout:  cfg.Scheduler.JobTimeout,
			},
		)
		if err := sched.Register(reminderJob, scheduler.NewIntervalSchedule(cfg.Scheduler.ReminderInterval)); err != nil {
			return fmt.Errorf("failed to register reminder job: %w", err)
		}
	} else {
		log.Info("reminder dispatch disabled by feature flag")
	}

	if cfg.Features.IsEnabled(config.FeatureNotifyAbsenceNotice, nil) {
		absenceSchedule, err := scheduler.NewCronSchedule(cfg.Scheduler.AbsenceCron, cfg.App.Location)
		if err != nil {
			return fmt.Errorf("invalid absence cron %q: %w", cfg.Scheduler.AbsenceCron, err)
		}
		absenceJob := jobs.NewAbsenceNoticeJob(sessionRepo, notifier, recorder, log)
		if err := sched.Register(absenceJob, absenceSchedule); err != nil {
			return fmt.Errorf("failed to register absence job: %w", err)
		}
	} else {
		log.Info("absence notices disabled by feature flag")
	}

	if cfg.Features.IsEnabled(config.FeatureScheduleAudit, nil) {
		auditSchedule, err := scheduler.NewCronSchedule(cfg.Scheduler.AuditCron, cfg.App.Location)
		if err != nil {
			return fmt.Errorf("invalid audit cron %q: %w", cfg.Scheduler.AuditCron, err)
		}
		auditJob := jobs.NewScheduleAuditJob(sessionRepo, log, 0)
		if err := sched.Register(auditJob, auditSchedule); err != nil {
			return fmt.Errorf("failed to register audit job: %w", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("scheduler started",
		"reminder_interval", cfg.Scheduler.ReminderInterval.String(),
		"absence_cron", cfg.Scheduler.AbsenceCron,
		"audit_cron", cfg.Scheduler.AuditCron,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if cfg.App.Debug || cfg.Observability.LogLevel == "debug" {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
