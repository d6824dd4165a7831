package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hana270/PFE-PROJET/internal/cart/cache"
	cartrepo "github.com/hana270/PFE-PROJET/internal/cart/repository"
	cartsvc "github.com/hana270/PFE-PROJET/internal/cart/service"
	"github.com/hana270/PFE-PROJET/internal/catalog"
	"github.com/hana270/PFE-PROJET/internal/config"
	"github.com/hana270/PFE-PROJET/internal/httpapi"
	"github.com/hana270/PFE-PROJET/internal/metrics"
	"github.com/hana270/PFE-PROJET/internal/notify"
	orderrepo "github.com/hana270/PFE-PROJET/internal/orders/repository"
	ordersvc "github.com/hana270/PFE-PROJET/internal/orders/service"
	paysvc "github.com/hana270/PFE-PROJET/internal/payments/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	mongoDB, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB, cartrepo.ConnOptions{
		ConnectTimeout: cfg.MongoConnectTimeout,
		MaxPoolSize:    cfg.MongoMaxPoolSize,
		MinPoolSize:    cfg.MongoMinPoolSize,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	cartRepo := cartrepo.NewMongoRepository(mongoDB)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	creds := &orderrepo.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsDir,
	}
	pgRepo, err := orderrepo.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pgRepo.Close()
	if err := pgRepo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", cfg.PostgresHost, cfg.PostgresPort)

	producer := notify.NewProducer(cfg.KafkaBrokers...)
	defer producer.Close()

	catalogClient := catalog.NewHTTPClient(cfg.CatalogBaseURL, 5*time.Second)

	cartService := cartsvc.NewCartService(cartRepo, cache.NewRedisCache(redisClient), catalogClient, cfg.SessionCartTTL)
	orderService := ordersvc.NewOrderService(pgRepo, catalogClient, cartService, producer)
	paymentService := paysvc.NewPaymentService(pgRepo, orderService, producer, cfg.VerificationCodeTTL)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweeper := cartsvc.NewSweeper(cartRepo, cfg.SweepInterval, cfg.SessionCartTTL)
	go sweeper.Run(sweepCtx)

	m := metrics.NewServerMetrics("api")
	router := httpapi.NewRouter(cartService, paymentService, orderService, cfg.JWTSecret, m)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("API listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := mongoDB.Client().Disconnect(ctx); err != nil {
		log.Printf("MongoDB disconnect error: %v", err)
	}
	log.Println("Stopped")
}
