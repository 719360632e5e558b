package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/tuition-marketplace/internal/access"
	"github.com/iliyamo/tuition-marketplace/internal/config"
	"github.com/iliyamo/tuition-marketplace/internal/database"
	"github.com/iliyamo/tuition-marketplace/internal/handler"
	"github.com/iliyamo/tuition-marketplace/internal/logger"
	"github.com/iliyamo/tuition-marketplace/internal/middleware"
	"github.com/iliyamo/tuition-marketplace/internal/payment"
	"github.com/iliyamo/tuition-marketplace/internal/queue"
	"github.com/iliyamo/tuition-marketplace/internal/repository"
	"github.com/iliyamo/tuition-marketplace/internal/router"
	"github.com/iliyamo/tuition-marketplace/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()
	if err := store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	} else {
		log.Warn("redis unavailable, rate limiting disabled")
	}

	users := repository.NewUserRepo(store)
	tokens := repository.NewTokenRepo(store)
	tuitions := repository.NewTuitionRepo(store)
	apps := repository.NewApplicationRepo(store)
	payments := repository.NewPaymentRepo(store)
	analytics := repository.NewAnalyticsRepo(store)

	var publisher service.EventPublisher = service.NopPublisher{}
	if cfg.QueueEnabled {
		publisher = service.NewQueuePublisher(cfg.RabbitURL, log)
	}
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is empty, checkout calls will fail")
	}
	stripe := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	userSvc := service.NewUserService(users, cfg.BcryptCost, log)
	tuitionSvc := service.NewTuitionService(tuitions, apps, log)
	appSvc := service.NewApplicationService(apps, tuitions, log)
	paySvc := service.NewPaymentService(stripe, stripe, tuitions, apps, payments, publisher,
		service.PaymentConfig{Currency: cfg.StripeCurrency, ClientURL: cfg.ClientURL}, log)
	statsSvc := service.NewAnalyticsService(analytics)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.ClientURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.ContextTimeout(cfg.RequestTimeout))

	router.Register(e, router.Handlers{
		Health:       handler.Health(store),
		Auth:         handler.NewAuthHandler(cfg, users, tokens, log),
		Users:        handler.NewUserHandler(userSvc, log),
		Tuitions:     handler.NewTuitionHandler(tuitionSvc, log),
		Applications: handler.NewApplicationHandler(appSvc, log),
		Payments:     handler.NewPaymentHandler(paySvc, log),
		Admin:        handler.NewAdminHandler(statsSvc, log),
	}, router.Guards{
		JWTSecret: cfg.JWTSecret,
		Policy:    access.NewPolicy(users),
		Limit:     middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	})

	if cfg.QueueEnabled && cfg.QueueConsumerEnabled {
		consumer := queue.NewPaymentConsumer(cfg.RabbitURL, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("payment consumer stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ":"+cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
