package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"chainrelay/internal/contact"
	jwttoken "chainrelay/internal/jwt_token"
	"chainrelay/internal/notification"
	"chainrelay/internal/platform/config"
	"chainrelay/internal/platform/httpserver"
	"chainrelay/internal/platform/logger"
	"chainrelay/internal/platform/metrics"
	platformredis "chainrelay/internal/platform/redis"
	"chainrelay/internal/processor"
	"chainrelay/internal/push"
	"chainrelay/internal/report"
	httptransport "chainrelay/internal/transport/http"
	"chainrelay/internal/user"
)

// main wires dependencies and owns the process lifecycle: the HTTP server
// and the report processor run until SIGINT/SIGTERM, then shut down
// gracefully. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mx := metrics.New()

	// Stores: PostgreSQL when a DSN is configured, in-memory otherwise
	// (local development and tests).
	var (
		contactStore      contact.Store
		userStore         user.Store
		reportStore       report.Store
		notificationStore notification.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		contactStore = contact.NewPostgres(db)
		userStore = user.NewPostgres(db)
		reportStore = report.NewPostgres(db)
		notificationStore = notification.NewPostgres(db)
		log.Info("using postgresql storage")
	} else {
		contactStore = contact.NewInMemoryStore()
		userStore = user.NewInMemoryStore()
		reportStore = report.NewInMemoryStore()
		notificationStore = notification.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory storage")
	}

	var tokenStore push.TokenStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		tokenStore = push.NewRedisTokenStore(redisClient)
		log.Info("using redis push-token store")
	} else {
		tokenStore = push.NewInMemoryTokenStore()
		log.Warn("no redis URL configured, using in-memory push-token store")
	}

	var sender push.Sender
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSender, err := push.NewKafkaSender(ctx, cfg.Kafka.Brokers, cfg.Kafka.PushTopic, log)
		if err != nil {
			return err
		}
		defer kafkaSender.Close()
		sender = kafkaSender
	} else {
		log.Warn("no kafka brokers configured, push delivery disabled")
	}

	proc, err := processor.New(cfg.Engine,
		reportStore, contactStore, userStore, notificationStore, tokenStore, sender,
		processor.WithLogger(log), processor.WithMetrics(mx))
	if err != nil {
		return err
	}
	procDone := make(chan error, 1)
	go func() { procDone <- proc.Run(ctx) }()

	jwt := jwttoken.NewService(cfg.JWTSigningKey, "chainrelay", "chainrelay-devices")
	userSvc := user.NewService(userStore, tokenStore, jwt)
	contactSvc := contact.NewService(contactStore)
	notificationSvc := notification.NewService(notificationStore)
	cascader := notification.NewCascadeRunner(notificationStore, tokenStore, sender,
		notification.WithCascadeLogger(log), notification.WithCascadeMetrics(mx))
	reportSvc := report.NewService(reportStore, notificationSvc, cascader, proc, log)

	handlers := httptransport.NewHandlers(log, mx, jwttoken.NewMiddlewareAdapter(jwt),
		userSvc, contactSvc, reportSvc, notificationSvc)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handlers))

	serverErr := make(chan error, 1)
	go func() {
		log.Info("chainrelay listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-procDone
}
