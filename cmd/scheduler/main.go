package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"engagement_backend/internal/activity"
	"engagement_backend/internal/appointments"
	"engagement_backend/internal/events"
	"engagement_backend/internal/leads"
	"engagement_backend/internal/notification"
	"engagement_backend/internal/notification/sse"
	"engagement_backend/internal/reminders"
	"engagement_backend/internal/scheduler"
	"engagement_backend/platform/config"
	"engagement_backend/platform/db"
	"engagement_backend/platform/logger"
	"engagement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "passInterval", cfg.GetReminderPassInterval())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	loc := cfg.GetLocation()

	// Worker-side wiring: no HTTP handlers are mounted in this process.
	activityModule := activity.NewModule(pool, val)
	appointmentsModule := appointments.NewModule(pool, val, eventBus, activityModule.Service, log, loc)
	leadsModule := leads.NewModule(pool, eventBus, val, log, cfg.GetPhoneDefaultRegion())
	remindersModule := reminders.NewModule(pool, val, eventBus, appointmentsModule.Service, cfg, log, loc)

	redisClient, err := db.NewRedisClient(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()
	notification.NewRelayPublisher(eventBus, sse.NewRedisRelay(redisClient, cfg.GetRealtimeChannel(), log))

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	ticker := scheduler.NewTicker(client, cfg.GetReminderPassInterval(), log)
	go ticker.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, remindersModule.Service, leadsModule.Service, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
	log.Info("scheduler stopped")
}
