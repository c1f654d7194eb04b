package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/robertarktes/show-reservations/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/show-reservations/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/show-reservations/internal/adapters/redis"
	"github.com/robertarktes/show-reservations/internal/audit"
	"github.com/robertarktes/show-reservations/internal/catalog"
	"github.com/robertarktes/show-reservations/internal/config"
	httphandler "github.com/robertarktes/show-reservations/internal/http"
	"github.com/robertarktes/show-reservations/internal/idempotency"
	"github.com/robertarktes/show-reservations/internal/observability"
	"github.com/robertarktes/show-reservations/internal/rateLimit"
	"github.com/robertarktes/show-reservations/internal/reservation"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg, "shows-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	observability.InitMetrics()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	redisCache := redisadapter.NewCache(redisClient, cfg.SeatCacheTTL)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisCache)

	seats := reservation.NewSeatAllocator(repo, redisCache, logger)
	lifecycle := reservation.NewLifecycle(repo, seats, reservation.NewCapacityTracker(repo), logger)
	svc := httphandler.Services{
		Catalog:      catalog.NewService(repo, logger),
		Seats:        seats,
		Lifecycle:    lifecycle,
		Refunds:      reservation.NewRefundWorkflow(repo, lifecycle),
		Queries:      reservation.NewQueries(repo),
		Availability: reservation.NewAvailabilityChecker(repo),
	}

	// The audit read routes need the projector's Mongo database.
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		db := mongoClient.Database(cfg.MongoDB)
		svc.Activity = audit.NewReader(mongoadapter.NewAuditLogger(db, logger), mongoadapter.NewTimeline(db, logger))
	}
	handlers := httphandler.NewHandlers(svc, repo, redisCache)

	r := httphandler.SetupRouter(handlers, logger, httphandler.RouterOptions{
		JWTSecret:   []byte(cfg.JWTSecret),
		Limiter:     rl,
		UserRate:    cfg.RateLimitUser,
		IPRate:      cfg.RateLimitIP,
		Idempotency: idemp,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
