package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/fitness-protocols/internal/api"
	"alcyxob/fitness-protocols/internal/config"
	"alcyxob/fitness-protocols/internal/generator"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/protocol"
	"alcyxob/fitness-protocols/internal/ratelimit"
	"alcyxob/fitness-protocols/internal/repository"
	"alcyxob/fitness-protocols/internal/repository/memory"
	"alcyxob/fitness-protocols/internal/repository/mongo"
	"alcyxob/fitness-protocols/internal/service"
	"alcyxob/fitness-protocols/internal/storage"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// @title Fitness Protocols API
// @version 1.0
// @description Generates, validates and tracks workout, nutrition and mindset protocols.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting Fitness Protocols Server...", "mode", cfg.Log.Mode, "level", log.Level())

	ctx := context.Background()

	// --- Repositories ---
	repos, closeRepos := openRepositories(ctx, cfg.Database, log)
	defer closeRepos()

	// --- Initialize Storage ---
	var fileStorage storage.FileStorage
	var media protocol.MediaStore
	if cfg.S3.BucketName != "" {
		fileStorage, err = storage.NewS3Storage(ctx, cfg.S3, log)
		if err != nil {
			log.Fatal("Failed to initialize S3 storage", "error", err)
		}
		media = fileStorage
	} else {
		log.Warn("No S3 bucket configured; photo uploads are disabled")
	}

	// --- Rate Limiter ---
	var limiter ratelimit.Limiter
	if cfg.Redis.Address != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("Redis ping failed, rate limiter will fail open until it recovers", "address", cfg.Redis.Address, "error", err)
		}
		cancel()
		limiter = ratelimit.NewRedis(rdb, "fitness-protocols", cfg.RateLimit.Requests, cfg.RateLimit.Window)
		log.Info("Generation rate limit enabled", "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window)
	}

	// --- Generator ---
	gen, err := generator.New(ctx, generator.Config{
		Provider:    cfg.Generator.Provider,
		APIKey:      cfg.Generator.APIKey,
		Model:       cfg.Generator.Model,
		BaseURL:     cfg.Generator.BaseURL,
		Timeout:     cfg.Generator.Timeout,
		MaxRetries:  cfg.Generator.MaxRetries,
		Temperature: float32(cfg.Generator.Temperature),
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize generator", "provider", cfg.Generator.Provider, "error", err)
	}

	// --- Initialize Services ---
	authService := service.NewAuthService(repos.users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.Auth.AdminEmails)
	gate := service.NewGate(repos.protocols, repos.checkins, cfg.Gate.Window, log)
	protocolService := service.NewProtocolService(
		repos.users, repos.protocols, repos.catalog,
		gate, gen, protocol.NewTemplatePrompts(), media,
		service.EngineConfig{
			MaxAttempts:      cfg.Engine.MaxAttempts,
			MaxDocumentBytes: cfg.Engine.MaxDocumentBytes,
			RequestTimeout:   cfg.Engine.RequestTimeout,
			AuditTimeout:     cfg.Engine.AuditTimeout,
			AuditWait:        cfg.Engine.AuditWait,
		},
		log,
	)
	checkinService := service.NewCheckinService(repos.checkins, fileStorage, log)
	catalogService := service.NewCatalogService(repos.catalog, fileStorage, log)

	// --- Initialize Gin Engine ---
	if cfg.Log.Mode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, cfg.JWT.Secret, api.Services{
		Auth:     authService,
		Protocol: protocolService,
		Checkin:  checkinService,
		Catalog:  catalogService,
	}, limiter, log)

	// Generation requests hold the connection for the whole pipeline.
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Engine.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Audits still running after their responses were sent.
	protocolService.Wait()
	log.Info("Server exiting.")
}

type repositories struct {
	users     repository.UserRepository
	protocols repository.ProtocolRepository
	checkins  repository.CheckinRepository
	catalog   repository.CatalogRepository
}

// openRepositories connects to MongoDB when a URI is configured and falls back to
// the in-memory store otherwise.
func openRepositories(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (repositories, func()) {
	if cfg.URI == "" {
		log.Warn("No database URI configured; using the in-memory store")
		return repositories{
			users:     memory.NewUserRepository(),
			protocols: memory.NewProtocolRepository(),
			checkins:  memory.NewCheckinRepository(),
			catalog:   memory.NewCatalogRepository(),
		}, func() {}
	}

	dbClient, err := mongo.ConnectDB(cfg.URI)
	if err != nil {
		log.Fatal("Could not connect to MongoDB", "error", err)
	}
	appDB := dbClient.Database(cfg.Name)
	log.Info("Database connection established", "database", cfg.Name)

	indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(indexCtx, appDB); err != nil {
		log.Fatal("Failed to ensure database indexes", "error", err)
	}

	closeDB := func() {
		log.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("Failed to disconnect MongoDB", "error", err)
		}
	}
	return repositories{
		users:     mongo.NewMongoUserRepository(appDB),
		protocols: mongo.NewMongoProtocolRepository(appDB),
		checkins:  mongo.NewMongoCheckinRepository(appDB),
		catalog:   mongo.NewMongoCatalogRepository(appDB),
	}, closeDB
}
