package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/eventhub/internal/config"
	"github.com/iliyamo/eventhub/internal/database"
	"github.com/iliyamo/eventhub/internal/handler"
	"github.com/iliyamo/eventhub/internal/logger"
	"github.com/iliyamo/eventhub/internal/middleware"
	"github.com/iliyamo/eventhub/internal/queue"
	"github.com/iliyamo/eventhub/internal/repository"
	"github.com/iliyamo/eventhub/internal/router"
	"github.com/iliyamo/eventhub/internal/service"
	"github.com/iliyamo/eventhub/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("init logger: " + err.Error() + "\n")
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

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.Env, cfg.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Pass:     cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		MaxConns: cfg.DBMaxConns,
		MaxLife:  cfg.DBConnMaxLife,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable: rate limiting, caching and otp login are disabled")
	} else {
		defer rdb.Close()
	}

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	// event detail depends on who asks
	cacheCfg.KeyStrategy = "user_route_query"

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	events := repository.NewEventRepo(db)
	sessions := repository.NewSessionRepo(db)
	workshops := repository.NewWorkshopRepo(db)
	discounts := repository.NewDiscountRepo(db)
	invoices := repository.NewInvoiceRepo(db)
	friends := repository.NewFriendshipRepo(db)

	var publisher *queue.Publisher
	if cfg.RabbitMQURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitMQURL, log)
		defer publisher.Close()
	} else {
		log.Warn("RABBITMQ_URL not set: events are not published")
	}

	// services
	discountSvc := service.NewDiscountService(discounts)
	registration := &service.RegistrationService{
		Users:     users,
		Events:    events,
		Workshops: workshops,
		Friends:   friends,
		Invoices:  invoices,
		Discounts: discountSvc,
		Store:     repository.NewRegistrationStore(db),
		Log:       log,
	}
	if publisher != nil {
		registration.Publisher = publisher
	}
	schedule := &service.ScheduleService{
		Events:    events,
		Sessions:  sessions,
		Workshops: workshops,
		Store:     repository.NewScheduleStore(db),
	}

	auth := &handler.AuthHandler{Cfg: cfg, Users: users, Tokens: tokens, Log: log}
	if rdb != nil {
		auth.OTP = repository.NewOTPStore(rdb, cfg.OTP.Prefix, time.Duration(cfg.OTP.TTLSeconds)*time.Second, cfg.OTP.MaxAttempts)
	}
	if publisher != nil {
		auth.Publisher = publisher
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewValidator()
	e.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recover(log),
		middleware.Tracing(cfg.ServiceName),
	)

	router.Register(e, router.Handlers{
		Health:       &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:         auth,
		Friends:      &handler.FriendHandler{Friends: friends, Users: users},
		Events:       &handler.EventHandler{Events: events, Sessions: sessions, Workshops: workshops, Invoices: invoices, Friends: friends, Users: users},
		Discounts:    &handler.DiscountHandler{Events: events, Discounts: discounts, Validator: discountSvc},
		Registration: &handler.RegistrationHandler{Registrar: registration, Invoices: invoices},
		Sessions:     &handler.SessionHandler{Schedule: schedule, Sessions: sessions, Events: events, Friends: friends},
		Workshops:    &handler.WorkshopHandler{Schedule: schedule, Workshops: workshops, Events: events, Friends: friends},
		Operators:    &handler.OperatorHandler{Events: events, Users: users, Friends: friends},
		Agenda:       &handler.AgendaHandler{Agenda: repository.NewAgendaRepo(db), Events: events, Friends: friends},
	}, router.Options{
		JWTSecret:  cfg.JWTSecret,
		RateLimit:  middleware.NewTokenBucket(rlCfg, rdb, log),
		EventCache: middleware.NewRedisCache(cacheCfg, rdb),
	})

	var wg sync.WaitGroup
	if cfg.RabbitMQURL != "" {
		consumers := []*queue.Consumer{
			{URL: cfg.RabbitMQURL, Queue: queue.RegistrationCompletedQueue, Prefetch: 16,
				Handle: queue.NewRegistrationLog(cfg.LogDir).Handle, Log: log},
			{URL: cfg.RabbitMQURL, Queue: queue.OTPRequestedQueue, Prefetch: 16,
				Handle: queue.OTPHandler(queue.LogNotifier{Log: log}), Log: log},
		}
		for _, c := range consumers {
			wg.Add(1)
			go func(c *queue.Consumer) {
				defer wg.Done()
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("consumer stopped", zap.String("queue", c.Queue), zap.Error(err))
				}
			}(c)
		}
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
	return nil
}
