// Package main - точка входа HTTP API движка расписаний Bilim CRM.
//
// API отвечает за синхронные операции:
// - Генерация и перегенерация расписания группы
// - Переходы статусов занятий (завершение, отмена, перенос)
// - Отметка посещаемости
// - Чтение расписания, статистики и деталей занятий
//
// Уведомления об изменении статусов уходят асинхронно через event bus,
// чтобы HTTP-запрос не ждал Telegram API.
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
	"github.com/bilim-crm/bilim-session-engine/internal/application/eventhandler"
	"github.com/bilim-crm/bilim-session-engine/internal/application/query"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/session"
	"github.com/bilim-crm/bilim-session-engine/internal/domain/shared"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/external/telegram"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/messaging"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/persistence/postgres"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/persistence/redis"
	"github.com/bilim-crm/bilim-session-engine/internal/infrastructure/service"
	httpserver "github.com/bilim-crm/bilim-session-engine/internal/interface/http"
	"github.com/bilim-crm/bilim-session-engine/internal/interface/http/handlers"
	"github.com/bilim-crm/bilim-session-engine/pkg/logger"
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
	log.Info("starting Bilim session engine API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

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
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var sessionCache session.Cache
	var cacheChecker handlers.CacheChecker

	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureScheduleDayCache, nil) {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, day-view caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			sessionCache = redis.NewSessionCache(redisCache)
			cacheChecker = redisCache
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultConfig()
	eventBusConfig.Logger = log
	eventBusConfig.AsyncMode = true
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. РЕПОЗИТОРИИ И ОБРАБОТЧИКИ КОМАНД/ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories and handlers...")
	sessionRepo := postgres.NewSessionRepository(dbConn)

	var publisher shared.EventPublisher = eventBus

	generateHandler := command.NewGenerateSessionsHandler(sessionRepo, sessionCache, publisher)
	regenerateHandler := command.NewRegenerateSessionsHandler(sessionRepo, sessionCache, generateHandler, publisher)
	softDeleteHandler := command.NewSoftDeleteSessionsHandler(sessionRepo, sessionCache, publisher)
	transitionHandler := command.NewTransitionSessionHandler(sessionRepo, sessionCache, publisher)
	updateHandler := command.NewUpdateSessionHandler(sessionRepo, sessionCache, publisher)
	attendanceHandler := command.NewMarkAttendanceHandler(sessionRepo, sessionCache, publisher)
	automationHandler := command.NewRecordAutomationEventHandler(sessionRepo, publisher)

	scheduleQuery := query.NewGetGroupScheduleHandler(sessionRepo, sessionCache)
	detailsQuery := query.NewGetSessionDetailsHandler(sessionRepo)
	nextQuery := query.NewGetNextSessionHandler(sessionRepo)
	statsQuery := query.NewGetSessionStatsHandler(sessionRepo)
	todayQuery := query.NewGetTodaySessionsHandler(sessionRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. TELEGRAM УВЕДОМЛЕНИЯ (асинхронно, через event bus)
	// ─────────────────────────────────────────────────────────────────────────
	var telegramChecker handlers.ExternalAPIChecker

	if !cfg.Telegram.Disabled && cfg.Features.IsEnabled(config.FeatureNotifyStatusChange, nil) {
		log.Info("initializing telegram notifier...")
		tgConfig := telegram.DefaultClientConfig(cfg.Telegram.Token)
		tgConfig.Timeout = cfg.Telegram.RequestTimeout
		tgConfig.Logger = log
		tgClient := telegram.NewClient(tgConfig)
		telegramChecker = tgClient

		resolver := service.StaticChatResolver(cfg.Telegram.GroupChats)
		notifier := service.NewTelegramNotifier(tgClient, resolver, log)

		statusHandler := eventhandler.NewOnStatusChangedHandler(sessionRepo, notifier, automationHandler, log)
		if err := eventBus.Subscribe(statusHandler); err != nil {
			return fmt.Errorf("failed to subscribe status handler: %w", err)
		}
	} else {
		log.Info("telegram delivery disabled, status notices will not be sent")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	if cacheChecker != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(cacheChecker))
	}
	if telegramChecker != nil {
		healthChecker.AddCheck("telegram", handlers.NewExternalAPICheck(telegramChecker))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	serverConfig.EnableCORS = cfg.HTTP.EnableCORS
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	serverConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader
	serverConfig.APIKeys = cfg.HTTP.APIKeys

	httpLog := logger.Default()
	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		GenerateSessionsHandler:      generateHandler,
		RegenerateSessionsHandler:    regenerateHandler,
		SoftDeleteSessionsHandler:    softDeleteHandler,
		TransitionSessionHandler:     transitionHandler,
		UpdateSessionHandler:         updateHandler,
		MarkAttendanceHandler:        attendanceHandler,
		RecordAutomationEventHandler: automationHandler,

		GetGroupScheduleHandler:  scheduleQuery,
		GetSessionDetailsHandler: detailsQuery,
		GetNextSessionHandler:    nextQuery,
		GetSessionStatsHandler:   statsQuery,
		GetTodaySessionsHandler:  todayQuery,

		Logger:        httpLog,
		HealthChecker: healthChecker,
	})

	log.Info("starting HTTP server", "address", serverConfig.Address())
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
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
		// JSON формат для production (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Текстовый формат для development (лучше читается)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
