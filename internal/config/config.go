package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	CRDBDSN        string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RabbitURL      string
	JWTSecret      string
	OTLPEndpoint   string
	SeatCacheTTL   time.Duration
	IdempotencyTTL time.Duration
	OutboxInterval time.Duration
	AuditInterval  time.Duration
	RateLimitUser  int
	RateLimitIP    int
	AuditQueue     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        envOr("MONGO_DB", "shows"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SeatCacheTTL:   durationOr("SEAT_CACHE_TTL", 30*time.Second),
		IdempotencyTTL: durationOr("IDEMPOTENCY_TTL", time.Hour),
		OutboxInterval: durationOr("OUTBOX_INTERVAL", 5*time.Second),
		AuditInterval:  durationOr("AUDIT_INTERVAL", time.Minute),
		RateLimitUser:  intOr("RATE_LIMIT_USER", 30),
		RateLimitIP:    intOr("RATE_LIMIT_IP", 300),
		AuditQueue:     envOr("AUDIT_QUEUE", "reservations.audit"),
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	d, _ := time.ParseDuration(os.Getenv(key))
	if d <= 0 {
		return def
	}
	return d
}

func intOr(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
