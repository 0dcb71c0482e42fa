package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/chatbot"
	"github.com/iliyamo/smart-parking/internal/config"
	"github.com/iliyamo/smart-parking/internal/database"
	"github.com/iliyamo/smart-parking/internal/handler"
	"github.com/iliyamo/smart-parking/internal/jobs"
	"github.com/iliyamo/smart-parking/internal/logger"
	"github.com/iliyamo/smart-parking/internal/middleware"
	"github.com/iliyamo/smart-parking/internal/queue"
	"github.com/iliyamo/smart-parking/internal/repository"
	"github.com/iliyamo/smart-parking/internal/router"
	"github.com/iliyamo/smart-parking/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load() // .env is optional; real env wins
	cfg := config.Load()

	lg, err := logger.Init(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := database.Migrate(ctx, db)
		cancel()
		if err != nil {
			lg.Fatal("schema migration failed", zap.Int("applied", n), zap.Error(err))
		}
		lg.Info("schema applied", zap.Int("statements", n))
	}

	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		lg.Warn("redis unavailable, continuing without it", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Domain events go to rabbitmq when enabled.
	qcfg := config.LoadQueueConfig()
	var events queue.Publisher = queue.NopPublisher{}
	if qcfg.Enabled {
		pub := queue.NewAMQPPublisher(qcfg.URL, qcfg.Queue, logger.Named("publisher"))
		defer pub.Close()
		events = pub
	}

	policy := config.LoadPolicyConfig()
	chatCfg := config.LoadChatConfig()

	// Repositories
	users := repository.NewUserRepo(db)
	zones := repository.NewZoneRepo(db)
	violations := repository.NewViolationRepo(db)
	wallets := repository.NewWalletRepo(db)
	otps := repository.NewOTPRepo(db)
	audits := repository.NewAuditRepo(db)

	// Services
	auth := service.NewAuthService(db, cfg, users, repository.NewBadgeRepo(db), repository.NewTokenRepo(db), otps,
		logger.Named("auth"))
	ledger := service.NewLedger(db, wallets, events, logger.Named("ledger"))
	reconciler := service.NewReconciler(db, zones, violations, policy.DefaultPenaltyPerVehicle, events,
		logger.Named("reconciler"))
	bookings := service.NewBookingService(db, repository.NewBookingRepo(db), repository.NewPassRepo(db), zones,
		repository.NewVehicleRepo(db), ledger, policy, events, logger.Named("booking"))

	kb, err := chatbot.LoadKnowledgeBase(chatCfg.KBPath)
	if err != nil {
		lg.Fatal("chatbot knowledge base", zap.Error(err))
	}
	store, sweeper := chatStore(chatCfg, rdb, lg)
	engine := chatbot.NewEngine(kb, store, chatCfg.HistoryLimit, logger.Named("chatbot"))

	h := router.Handlers{
		Health: handler.NewHealthHandler(db, rdb),
		Auth:   handler.NewAuthHandler(auth),
		Zones: handler.NewZoneHandler(
			service.NewZoneService(db, zones, reconciler, policy.DefaultPenaltyPerVehicle, policy.DefaultHourlyRate,
				logger.Named("zones")),
			reconciler),
		Violations: handler.NewViolationHandler(service.NewViolationService(db, zones, violations,
			policy.DefaultPenaltyPerVehicle, events, logger.Named("violations"))),
		Wallet:   handler.NewWalletHandler(ledger),
		Vehicles: handler.NewVehicleHandler(service.NewVehicleService(repository.NewVehicleRepo(db))),
		Bookings: handler.NewBookingHandler(bookings),
		Chat: handler.NewChatHandler(service.NewChatService(engine, repository.NewChatRepo(db),
			chatCfg.MaxMessageLen, logger.Named("chat"))),
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(lg)
	e.Use(middleware.RequestLogger(logger.Named("http")))
	router.Register(e, h, router.Options{
		JWTSecret:     cfg.JWTSecret,
		Redis:         rdb,
		RateLimit:     config.LoadRateLimitConfig(),
		AuthRateLimit: config.LoadAuthRateLimitConfig(),
		Cache:         config.LoadCacheConfig(),
		Idempotency:   config.LoadIdempotencyConfig(),
		Log:           logger.Named("ratelimit"),
	})

	// Background work: cron jobs and the audit consumer.
	var sched *jobs.Scheduler
	if jc := config.LoadJobsConfig(); jc.Enabled {
		sched, err = jobs.New(jc, bookings, otps, sweeper, logger.Named("jobs"))
		if err != nil {
			lg.Fatal("scheduler", zap.Error(err))
		}
		sched.Start()
	}

	bg, stopBG := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	if qcfg.Enabled {
		c := &queue.Consumer{URL: qcfg.URL, Queue: qcfg.Queue, Prefetch: qcfg.Prefetch, Sink: audits,
			Log: logger.Named("consumer")}
		go func() {
			defer close(consumerDone)
			if err := c.Run(bg); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	go func() {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sched != nil {
		sched.Stop(ctx)
	}
	stopBG()
	if err := e.Shutdown(ctx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}
	select {
	case <-consumerDone:
	case <-ctx.Done():
		lg.Warn("audit consumer did not stop in time")
	}
}

// chatStore picks the session store. Redis is preferred; the memory
// store is used when configured or when redis is down, and is the only
// one returned as a sweeper.
func chatStore(cfg config.ChatConfig, rdb *redis.Client, lg *zap.Logger) (chatbot.SessionStore, jobs.Sweeper) {
	if cfg.Store == "redis" && rdb != nil {
		return chatbot.NewRedisStore(rdb, cfg.Prefix, cfg.SessionTTL), nil
	}
	if cfg.Store == "redis" {
		lg.Warn("chat sessions kept in memory, redis unavailable")
	}
	mem := chatbot.NewMemoryStore(cfg.SessionTTL)
	return mem, mem
}
