package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Leganyst/room-booking/internal/bot"
	"github.com/Leganyst/room-booking/internal/clock"
	"github.com/Leganyst/room-booking/internal/config"
	"github.com/Leganyst/room-booking/internal/db"
	"github.com/Leganyst/room-booking/internal/events"
	"github.com/Leganyst/room-booking/internal/httpapi"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
	"github.com/Leganyst/room-booking/internal/repository"
	"github.com/Leganyst/room-booking/internal/server"
	"github.com/Leganyst/room-booking/internal/service"
)

const serviceName = "room-booking"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		migrateOnly bool
		logLevel    string
	)

	flagSet := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to YAML config (env variables override it)")
	flagSet.BoolVar(&migrateOnly, "migrate-only", false, "apply database migrations and exit")
	flagSet.StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	// 1. Конфиг: defaults -> YAML -> .env -> env.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
	})
	log.Info("starting", cfg.LogAttrs()...)

	// 2. БД и миграции.
	gormDB, err := db.NewGormDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.EnsureConstraints(gormDB); err != nil {
		return fmt.Errorf("ensure constraints: %w", err)
	}
	if migrateOnly {
		log.Info("migrations applied")
		return nil
	}

	// 3. Шина событий.
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, log.With("component", "kafka"))
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		publisher = kp
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close publisher", "error", err)
		}
	}()

	// 4. Репозитории и сервисы.
	repos := repository.NewGormRepositories(gormDB)
	tx := repository.NewGormTxManager(gormDB)

	identitySvc := service.NewIdentityService(repos, tx, log.With("component", "identity"))
	bookingSvc := service.NewBookingService(repos, tx, publisher, clock.Real(), log.With("component", "booking"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Бот: webhook + воркер приветствий.
	botClient, err := bot.NewClient(cfg.Bot.APIEndpoint, cfg.Bot.Token, nil)
	if err != nil {
		return err
	}
	dispatcher := bot.NewDispatcher(
		botClient,
		identitySvc,
		bot.DispatcherConfig{
			WebAppURL:     cfg.Bot.WebAppURL,
			WebhookSecret: cfg.Bot.WebhookSecret,
			QueueSize:     cfg.Bot.QueueSize,
		},
		log.With("component", "bot"),
	)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start bot dispatcher: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Stop(stopCtx); err != nil {
			log.Warn("stop bot dispatcher", "error", err)
		}
	}()

	// 6. HTTP API и gRPC health.
	bookingHandler, err := httpapi.NewBookingHandler(bookingSvc, log.With("component", "http"))
	if err != nil {
		return err
	}
	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Bookings:       bookingHandler,
		Auth:           httpapi.NewAuthenticator(cfg.Bot.Token, identitySvc, log.With("component", "auth")),
		Health:         httpapi.NewHealthHandler(sqlDB, log),
		Webhook:        dispatcher,
		StaticDir:      cfg.HTTP.StaticDir,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   int64(cfg.HTTP.MaxBodyBytes),
		Log:            log.With("component", "http"),
	})

	srv := server.New(server.Config{
		HTTPAddr:        cfg.HTTP.Addr,
		GRPCAddr:        cfg.GRPC.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, handler, sqlDB, log.With("component", "server"))

	// 7. Блокируемся до сигнала.
	return srv.Run(ctx)
}
