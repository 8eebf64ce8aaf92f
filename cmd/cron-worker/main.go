package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/internal/capacity"
	"github.com/angelmondragon/timecredit-backend/internal/cron"
	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	"github.com/angelmondragon/timecredit-backend/internal/skills"
	"github.com/angelmondragon/timecredit-backend/pkg/config"
	"github.com/angelmondragon/timecredit-backend/pkg/db"
	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/metrics"
	"github.com/angelmondragon/timecredit-backend/pkg/migrate"
	"github.com/angelmondragon/timecredit-backend/pkg/observer"
	"github.com/angelmondragon/timecredit-backend/pkg/outbox"
	"github.com/angelmondragon/timecredit-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	runner := db.NewAtomicRunner(dbClient, cfg.Atomic, logg, ledgerMetrics)
	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	balanceRepo := balances.NewRepository(conn)
	skillRepo := skills.NewRepository(conn)
	bookingRepo := bookings.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)

	slotManager, err := capacity.NewManager(skillRepo)
	exitOnErr(logg, "failed to create capacity manager", err)
	transferEngine, err := ledger.NewEngine(balanceRepo, ledgerRepo, emitter)
	exitOnErr(logg, "failed to create transfer engine", err)

	// nothing subscribes in this process
	changes := observer.NewHub[bookings.BookingChange](ledgerMetrics.IncHubDrop)
	defer changes.Close()

	bookingService, err := bookings.NewService(bookings.ServiceDeps{
		Repo:     bookingRepo,
		Skills:   skillRepo,
		Balances: balanceRepo,
		Slots:    slotManager,
		Credits:  transferEngine,
		Runner:   runner,
		Outbox:   emitter,
		Changes:  changes,
		Metrics:  ledgerMetrics,
		Logger:   logg,
	})
	exitOnErr(logg, "failed to create bookings service", err)

	auditJob, err := cron.NewLedgerAuditJob(cron.LedgerAuditJobParams{
		Logger:   logg,
		Balances: balanceRepo,
		Skills:   skillRepo,
		Bookings: bookingRepo,
		Ledger:   ledgerRepo,
	})
	exitOnErr(logg, "failed to create ledger audit job", err)
	expiryJob, err := cron.NewBookingExpiryJob(cron.BookingExpiryJobParams{
		Logger:      logg,
		Repository:  bookingRepo,
		Transitions: bookingService,
		Expiry:      time.Duration(cfg.Booking.PendingExpiryDays) * 24 * time.Hour,
		BatchSize:   cfg.Cron.ExpiryBatchSize,
	})
	exitOnErr(logg, "failed to create booking expiry job", err)
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	exitOnErr(logg, "failed to create outbox retention job", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+envOrLocal(cfg.App.Env)), 0)
	exitOnErr(logg, "failed to create cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(auditJob, expiryJob, retentionJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	exitOnErr(logg, "failed to create cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(context.WithoutCancel(ctx), "cron worker shutting down gracefully")
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
