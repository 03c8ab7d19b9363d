package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clipshare-gateway/internal/access"
	"github.com/clipshare-gateway/internal/auth"
	"github.com/clipshare-gateway/internal/clip"
	"github.com/clipshare-gateway/internal/config"
	"github.com/clipshare-gateway/internal/middleware"
	"github.com/clipshare-gateway/internal/session"
	"github.com/clipshare-gateway/internal/storage"
	"github.com/clipshare-gateway/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Clip store
	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Infof("Connected to %s clip store", cfg.Database.Type)

	repo := clip.NewSQLRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		logger.Fatalf("Failed to ensure schema: %v", err)
	}

	// Upload session store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info("Connected to Redis")

	// Object storage
	storageService, err := storage.NewService(cfg)
	if err != nil {
		logger.Fatalf("Failed to create storage service: %v", err)
	}
	if err := storageService.EnsureBuckets(context.Background()); err != nil {
		logger.Fatalf("Failed to ensure buckets: %v", err)
	}
	logger.Info("Storage service initialized")

	// Services
	tokenService, err := access.NewTokenService(cfg.Crypto.AccessCodeSalt, logger)
	if err != nil {
		logger.Fatalf("Failed to create token service: %v", err)
	}
	validator := access.NewValidator(repo, tokenService, logger)
	clipService := clip.NewService(repo, tokenService, storageService, cfg.App.BaseURL, logger)
	sessionStore := session.NewStore(rdb, cfg.Redis.SessionTTL)
	assemblyService := upload.NewAssemblyService(storageService, logger)
	uploadService := upload.NewCompletionService(
		sessionStore, assemblyService, storageService, repo, tokenService, cfg.App.BaseURL, logger)
	authService := auth.NewService(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret)

	// Expiry sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go clipService.RunCleanup(sweepCtx, cfg.App.CleanupInterval)

	// Router
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	if cfg.App.EnableCORS {
		router.Use(middleware.CORSMiddleware())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		uploadGroup := api.Group("/upload")
		{
			uploadGroup.POST("/init", handleInitUpload(uploadService))
			uploadGroup.POST("/:uploadId/chunk/:index", handleUploadChunk(uploadService, cfg))
			uploadGroup.GET("/:uploadId/status", handleUploadStatus(uploadService))
			uploadGroup.POST("/:uploadId/complete", handleCompleteUpload(uploadService))
		}

		clipGroup := api.Group("/clip")
		{
			clipGroup.POST("", handleCreateClip(clipService))
			clipGroup.GET("/:clipId", handleClipInfo(validator))
			clipGroup.POST("/:clipId/access", handleAccessClip(validator, clipService))
		}

		api.GET("/file/:clipId", handleDownloadFile(validator, clipService, storageService))

		adminGroup := api.Group("/admin")
		{
			adminGroup.POST("/login", handleAdminLogin(authService))
			adminGroup.GET("/stats",
				middleware.AdminAuthMiddleware(authService),
				handleAdminStats(repo, sessionStore))
		}
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:           addr,
		Handler:        router,
		ReadTimeout:    15 * time.Minute,
		WriteTimeout:   15 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
