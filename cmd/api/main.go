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
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/tablewise/seatcore/internal/adapters/mongo"
	"github.com/tablewise/seatcore/internal/adapters/postgres"
	"github.com/tablewise/seatcore/internal/adapters/rabbit"
	redisadapter "github.com/tablewise/seatcore/internal/adapters/redis"
	"github.com/tablewise/seatcore/internal/admin"
	"github.com/tablewise/seatcore/internal/booking"
	"github.com/tablewise/seatcore/internal/clock"
	"github.com/tablewise/seatcore/internal/config"
	"github.com/tablewise/seatcore/internal/hold"
	httphandler "github.com/tablewise/seatcore/internal/http"
	"github.com/tablewise/seatcore/internal/idempotency"
	"github.com/tablewise/seatcore/internal/observability"
	"github.com/tablewise/seatcore/internal/ratelimit"
	"github.com/tablewise/seatcore/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("seatcore")
	floorplans := mongoadapter.NewFloorPlanRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewReplays(redisClient), time.Hour)
	rl := ratelimit.NewRateLimiter(cache)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	pub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	clk := clock.NewSystem()
	holds := hold.NewService(store, pub, cache, clk, logger, cfg.HoldTTL)
	coordinator := reservation.NewCoordinator(holds, logger)
	finalizer := booking.NewFinalizer(store, pub, cache, clk, logger)
	adminSvc := admin.NewService(store, audit, pub, cache, logger)

	handlers := httphandler.NewHandlers(cfg, logger, coordinator, holds, finalizer, adminSvc, store, cache, floorplans, idemp)
	r := httphandler.SetupRouter(handlers, logger, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
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
