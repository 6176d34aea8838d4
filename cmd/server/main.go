package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MedamoniSharan/CryptoAiTrade/internal/config"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/handlers"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/proofstore"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/rate"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/security"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/service"
	"github.com/MedamoniSharan/CryptoAiTrade/internal/storage"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/health"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/httpmiddleware"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/kafka"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/logging"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/metrics"
	"github.com/MedamoniSharan/CryptoAiTrade/libs/trace"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	investmentMetrics := service.NewMetrics(registry)

	ready := health.NewManager(cfg.App.ServiceName, false)

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := storage.New(pool)

	proofs, err := buildProofStore(cfg, pool)
	if err != nil {
		logger.Error("proof store init failed", "error", err)
		os.Exit(1)
	}

	limiter := buildRateLimiter(cfg, logger)

	var producer kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaMetrics := kafka.NewProducerMetrics(registry)
		primary, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, cfg.App.ServiceName, logger, kafkaMetrics)
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		producer = kafka.NewDLQPublisher(primary, primary, cfg.Kafka.Topics.DLQ, logger)
		defer producer.Close()
	} else {
		logger.Info("kafka brokers not configured, events disabled")
	}

	investmentSvc := service.NewInvestmentService(store, proofs, producer, logger, investmentMetrics, service.Topics{
		InvestmentsSubmitted: cfg.Kafka.Topics.InvestmentsSubmitted,
		InvestmentsUpdated:   cfg.Kafka.Topics.InvestmentsUpdated,
	}, cfg.ProofStore.MaxBytes)

	argon2 := security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}

	authHandler := handlers.NewAuthHandler(store, logger, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, argon2, limiter, cfg.JWTIssuer)
	investmentHandler := handlers.NewInvestmentHandler(investmentSvc, store, logger)
	pairHandler := handlers.NewPairHandler(store, logger)

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.App.ServiceName))

	router.GET("/healthz", health.LivenessHandler(cfg.App.ServiceName))
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	authHandler.RegisterRoutes(router)
	investmentHandler.RegisterRoutes(router, []byte(cfg.JWTSecret))
	pairHandler.RegisterRoutes(router, []byte(cfg.JWTSecret))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	ready.SetReady(true)

	go func() {
		logger.Info("http server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	waitForShutdown(httpServer, ready, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DB.User,
		cfg.DB.Password,
		cfg.DB.Host,
		cfg.DB.Port,
		cfg.DB.Name,
		cfg.DB.SSLMode,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func buildProofStore(cfg *config.Config, pool *pgxpool.Pool) (proofstore.Store, error) {
	if cfg.ProofStore.Driver == "s3" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return proofstore.NewS3(ctx, cfg.ProofStore.S3Bucket, cfg.ProofStore.S3Region)
	}
	return proofstore.NewPostgres(pool), nil
}

func buildRateLimiter(cfg *config.Config, logger *slog.Logger) rate.Limiter {
	if cfg.RateLimit.Redis.Addr == "" {
		logger.Info("rate limiter using in-process memory store")
		return rate.NewMemory(cfg.RateLimit.LoginLimit, cfg.RateLimit.Window)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.Redis.Addr,
		Password: cfg.RateLimit.Redis.Password,
		DB:       cfg.RateLimit.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis unavailable, falling back to memory rate limiter", "error", err)
		return rate.NewMemory(cfg.RateLimit.LoginLimit, cfg.RateLimit.Window)
	}

	return rate.NewRedisLimiter(client, cfg.RateLimit.LoginLimit, cfg.RateLimit.Window, cfg.RateLimit.Redis.Prefix)
}

func waitForShutdown(httpServer *http.Server, ready *health.Manager, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")
	ready.SetReady(false)

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
