package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN   string
	MongoURI      string
	RedisAddr     string
	RabbitURL     string
	HTTPAddr      string
	HoldTTL       time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	OTLPEndpoint  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	holdTTL, _ := time.ParseDuration(os.Getenv("HOLD_TTL"))
	if holdTTL == 0 {
		holdTTL = 20 * time.Minute
	}

	sweepInterval, _ := time.ParseDuration(os.Getenv("SWEEP_INTERVAL"))
	if sweepInterval == 0 {
		sweepInterval = 30 * time.Second
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	return &Config{
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		MongoURI:      os.Getenv("MONGO_URI"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		HTTPAddr:      httpAddr,
		HoldTTL:       holdTTL,
		SweepInterval: sweepInterval,
		SweepBatch:    100,
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
