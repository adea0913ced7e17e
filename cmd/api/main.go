package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"engagement_backend/internal/activity"
	"engagement_backend/internal/alerts"
	"engagement_backend/internal/appointments"
	"engagement_backend/internal/conversations"
	"engagement_backend/internal/events"
	apphttp "engagement_backend/internal/http"
	"engagement_backend/internal/http/router"
	"engagement_backend/internal/leads"
	"engagement_backend/internal/notification"
	"engagement_backend/internal/notification/sse"
	"engagement_backend/internal/reminders"
	"engagement_backend/migrations"
	"engagement_backend/platform/config"
	"engagement_backend/platform/db"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "timezone", cfg.GetLocation().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure
	// ========================================================================

	if cfg.GetMigrationsEnabled() {
		if err := db.WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, migrations.FS)
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")
	}

	var pool *pgxpool.Pool
	if err := db.WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	loc := cfg.GetLocation()

	relay := initRelay(ctx, cfg, log)

	// ========================================================================
	// Domain modules
	// ========================================================================

	activityModule := activity.NewModule(pool, val)
	appointmentsModule := appointments.NewModule(pool, val, eventBus, activityModule.Service, log, loc)
	leadsModule := leads.NewModule(pool, eventBus, val, log, cfg.GetPhoneDefaultRegion())
	alertsModule := alerts.NewModule(pool, val, eventBus, log, loc)
	remindersModule := reminders.NewModule(pool, val, eventBus, appointmentsModule.Service, cfg, log, loc)
	conversationsModule, err := conversations.NewModule(cfg, leadsModule.Service, appointmentsModule.Service, eventBus, val, log)
	if err != nil {
		log.Error("failed to initialize conversations module", "error", err)
		panic("failed to initialize conversations module: " + err.Error())
	}
	notificationModule := notification.NewModule(eventBus, relay, log)
	notificationModule.Start(ctx)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			appointmentsModule,
			remindersModule,
			alertsModule,
			activityModule,
			conversationsModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}

	// Open SSE streams never finish on their own.
	notificationModule.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	eventBus.Wait()
	log.Info("server stopped")
}

func initRelay(ctx context.Context, cfg *config.Config, log *logger.Logger) *sse.RedisRelay {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; scheduler events will not reach live streams")
		return nil
	}
	client, err := db.NewRedisClient(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to connect to redis; realtime relay disabled", "error", err)
		return nil
	}
	return sse.NewRedisRelay(client, cfg.GetRealtimeChannel(), log)
}
