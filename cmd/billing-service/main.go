package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lncworks/casebilling/internal/api"
	"github.com/lncworks/casebilling/internal/config"
	"github.com/lncworks/casebilling/internal/health"
	"github.com/lncworks/casebilling/internal/logger"
	"github.com/lncworks/casebilling/internal/services"
	"github.com/lncworks/casebilling/internal/sessions"
	"github.com/lncworks/casebilling/internal/store"
	"github.com/lncworks/casebilling/internal/store/postgres"
	"github.com/lncworks/casebilling/internal/store/sqlite"
)

func main() {
	// Optional build-target flag override (local | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud)")
	flag.Parse()

	log := logger.New("billing-service")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Billing service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// -------- Storage layer -----------------
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Store adapter unavailable")
	}

	// -------- Health monitor ----------------
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	storeChecker := store.NewHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)

	// -------- Services ----------------------
	clock := services.SystemClock{}
	entrySvc := services.NewTimeEntryService(st)
	timerSvc := services.NewTimerService(sessions.New(), st, cfg.DefaultRate(), clock)
	invoiceSvc := services.NewInvoiceService(st, clock, cfg.InvoiceDueDays)

	// -------- Router & Server ---------------
	router := api.NewRouter(log, entrySvc, timerSvc, invoiceSvc, svcHealth.IsHealthy)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Bootstrap(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewWithDB(db), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return sqlite.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}
