package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/crewdesk/crewdesk/internal/app"
	"github.com/crewdesk/crewdesk/internal/auth"
	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/expenses"
	"github.com/crewdesk/crewdesk/internal/platform/db"
	"github.com/crewdesk/crewdesk/internal/purchasing"
	"github.com/crewdesk/crewdesk/internal/schema"
	"github.com/crewdesk/crewdesk/internal/shared"
	"github.com/crewdesk/crewdesk/internal/timekeeping"
	"github.com/crewdesk/crewdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "crewdesk_session", cfg.SessionTTL, cfg.IsProduction())

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	capsMiddleware := capabilities.Middleware{Resolver: authRepo, Logger: logger}

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	shapes := schema.New()

	weeks, err := timekeeping.NewWeekClock(cfg.PayrollTimezone)
	if err != nil {
		logger.Error("load payroll timezone", slog.Any("error", err))
		os.Exit(1)
	}

	managerLimit, vpLimit, err := cfg.ApprovalLimits()
	if err != nil {
		logger.Error("parse approval limits", slog.Any("error", err))
		os.Exit(1)
	}

	timeRepo := timekeeping.NewRepository(pool)
	timeService := timekeeping.NewService(timeRepo, shapes, weeks, auditLogger, logger, nil)
	timeHandler := timekeeping.NewHandler(logger, timeService, shapes, weeks, capsMiddleware)

	expenseRepo := expenses.NewRepository(pool)
	expenseService := expenses.NewService(expenseRepo, expenseRepo, shapes, auditLogger, idempotencyStore, logger, nil)
	expenseHandler := expenses.NewHandler(logger, expenseService, shapes, capsMiddleware)

	purchasingRepo := purchasing.NewRepository(pool)
	purchasingService := purchasing.NewService(purchasingRepo, purchasingRepo, shapes, purchasing.Limits{Manager: managerLimit, VP: vpLimit}, auditLogger, logger, nil)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, shapes, capsMiddleware)

	rejects := app.NewRejectDispatcher(logger, capsMiddleware, timeService.Reject, expenseService.Reject, purchasingService.Reject)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		TimekeepingHandler: timeHandler,
		ExpensesHandler:    expenseHandler,
		PurchasingHandler:  purchasingHandler,
		RejectDispatcher:   rejects,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
