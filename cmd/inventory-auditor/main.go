package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/show-reservations/internal/adapters/crdb"
	"github.com/robertarktes/show-reservations/internal/config"
	"github.com/robertarktes/show-reservations/internal/inventory"
	"github.com/robertarktes/show-reservations/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "shows-inventory-auditor")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()
	observability.InitMetrics()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	auditor := inventory.NewAuditor(crdb.NewRepository(pool), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(cfg.AuditInterval),
		gocron.NewTask(func() {
			if _, err := auditor.Check(ctx); err != nil {
				logger.WithError(err).Error("inventory audit failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		log.Fatalf("failed to schedule audit: %v", err)
	}
	s.Start()
	logger.WithField("interval", cfg.AuditInterval.String()).Info("Inventory auditor started")

	// Exposes the drift gauges.
	go func() {
		if err := http.ListenAndServe(cfg.HTTPAddr, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics listener stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	cancel()
	if err := s.Shutdown(); err != nil {
		logger.WithError(err).Warn("scheduler shutdown")
	}
	logger.Info("Shutdown inventory auditor")
}
