package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/timecredit-backend/api/routes"
	"github.com/angelmondragon/timecredit-backend/internal/balances"
	"github.com/angelmondragon/timecredit-backend/internal/bookings"
	"github.com/angelmondragon/timecredit-backend/internal/capacity"
	"github.com/angelmondragon/timecredit-backend/internal/ledger"
	"github.com/angelmondragon/timecredit-backend/internal/reviews"
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

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(reg)

	conn := dbClient.DB()
	runner := db.NewAtomicRunner(dbClient, cfg.Atomic, logg, ledgerMetrics)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	balanceRepo := balances.NewRepository(conn)
	skillRepo := skills.NewRepository(conn)
	bookingRepo := bookings.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)

	balanceService, err := balances.NewService(balanceRepo, cfg.Ledger.StartingBalance, logg)
	exitOnErr(logg, "failed to create balances service", err)
	skillService, err := skills.NewService(skillRepo, balanceRepo, runner, logg)
	exitOnErr(logg, "failed to create skills service", err)
	slotManager, err := capacity.NewManager(skillRepo)
	exitOnErr(logg, "failed to create capacity manager", err)
	transferEngine, err := ledger.NewEngine(balanceRepo, ledgerRepo, emitter)
	exitOnErr(logg, "failed to create transfer engine", err)
	ledgerService, err := ledger.NewService(ledgerRepo)
	exitOnErr(logg, "failed to create ledger service", err)

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
	reviewService, err := reviews.NewService(reviews.NewRepository(conn), bookingRepo, skillRepo, runner, emitter, logg)
	exitOnErr(logg, "failed to create reviews service", err)

	hook, err := bookings.NewConfirmationHook(bookingService, changes, cfg.Booking.HookCheckCredits, logg)
	exitOnErr(logg, "failed to create confirmation hook", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	hookDone := make(chan struct{})
	go func() {
		defer close(hookDone)
		if err := hook.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "confirmation hook stopped", err)
		}
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, redisClient,
			routes.Observability{
				Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
				HTTP:    metrics.NewHTTPMetrics(reg),
			},
			routes.Services{
				Balances: balanceService,
				Skills:   skillService,
				Bookings: bookingService,
				Reviews:  reviewService,
				Ledger:   ledgerService,
			}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}

	changes.Close()
	<-hookDone
	logg.Info(context.WithoutCancel(ctx), "api server shut down gracefully")
}

func exitOnErr(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
