package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emmanuelselicour/ES-Company-API/internal/cache"
	"github.com/emmanuelselicour/ES-Company-API/internal/events"
	"github.com/emmanuelselicour/ES-Company-API/internal/ordernumber"
	"github.com/emmanuelselicour/ES-Company-API/internal/pricing"
	"github.com/emmanuelselicour/ES-Company-API/internal/repository"
	"github.com/emmanuelselicour/ES-Company-API/internal/service"
	transport "github.com/emmanuelselicour/ES-Company-API/internal/transport/http"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storedb"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    brokers,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	cartRepo := repository.NewMongoCartRepository(mongoDB)
	orderRepo := repository.NewMongoOrderRepository(mongoDB)
	stockLedger := repository.NewMongoStockLedger(mongoDB)
	counterRepo := repository.NewMongoCounterRepository(mongoDB)
	if err := repository.EnsureIndexes(ctx, cartRepo, orderRepo); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	publisher := events.NewPublisher(cfg.KafkaBrokers...)
	defer publisher.Close()
	if len(cfg.KafkaBrokers) > 0 {
		log.Printf("Publishing order events to %v", cfg.KafkaBrokers)
	}

	cartCache := cache.NewRedisCache(redisClient)
	engine := pricing.NewEngine()
	numbers := ordernumber.NewGenerator(counterRepo)

	cartService := service.NewCartService(cartRepo, stockLedger, cartCache, engine)
	checkoutService := service.NewCheckoutService(cartRepo, orderRepo, stockLedger, cartCache, engine, numbers, publisher)
	orderService := service.NewOrderService(orderRepo, stockLedger, publisher)

	router := transport.NewRouter(
		transport.NewCartHandler(cartService, cfg.RequestTimeout),
		transport.NewOrderHandler(checkoutService, orderService, cfg.RequestTimeout),
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect error: %v", err)
	}
	log.Println("Server stopped")
}
