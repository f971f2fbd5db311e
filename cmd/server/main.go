// Package main runs the event platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/attendance"
	"github.com/lumen-events/backend/internal/auth"
	"github.com/lumen-events/backend/internal/events"
	"github.com/lumen-events/backend/internal/mailer"
	"github.com/lumen-events/backend/internal/middleware"
	"github.com/lumen-events/backend/internal/realtime"
	"github.com/lumen-events/backend/internal/signups"
	"github.com/lumen-events/backend/internal/worker"
	"github.com/lumen-events/backend/pkg/database"
	"github.com/lumen-events/backend/pkg/queue"
	"github.com/lumen-events/backend/pkg/redis"
	"github.com/lumen-events/backend/pkg/response"
	"github.com/lumen-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			EventImagesBucket:    cfg.AWS.EventImagesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth / users
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, s3Client, logger)

	// Signups (ticket emails go through the job queue)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	signupRepo := signups.NewRepository(pool)
	signupHandler := signups.NewHandler(signupRepo, eventRepo, jobQueue, logger)

	// Attendance (QR issue + verify)
	attendanceRepo := attendance.NewRepository(pool)
	attendanceSvc := attendance.NewService(attendanceRepo, attendance.Options{
		VerifyBaseURL: cfg.Attendance.VerifyBaseURL,
		QRSize:        cfg.Attendance.QRSize,
	}, logger)
	attendanceHandler := attendance.NewHandler(attendanceSvc, hub, logger)

	// Ticket email worker
	ticketMailer := mailer.New(mailer.Config{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		User:        cfg.Email.SMTPUser,
		Pass:        cfg.Email.SMTPPass,
	}, logger)
	ticketProcessor := worker.NewTicketProcessor(jobQueue, signupRepo, eventRepo, attendanceSvc, ticketMailer, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), string(claims.Role), nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: attendees sign up without an account
	router.POST("/events/:id/signups", signupHandler.Register)

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)
		api.PATCH("/users/:id/role", middleware.RequireRole("admin"), authHandler.SetRole)

		// Events
		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.GetByID)
		api.POST("/events", middleware.RequireRole("staff", "admin"), eventHandler.Create)
		api.PATCH("/events/:id", middleware.RequireRole("staff", "admin"), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireRole("admin"), eventHandler.Delete)
		api.POST("/events/:id/image", middleware.RequireRole("staff", "admin"), eventHandler.UploadImage)
		api.GET("/events/:id/attendance", middleware.RequireRole("staff", "admin"), eventHandler.Attendance)

		// Signups
		api.GET("/signups", signupHandler.Mine)
		api.GET("/events/:id/signups", middleware.RequireRole("staff", "admin"), signupHandler.ListByEvent)
		api.DELETE("/signups/:id", middleware.RequireRole("staff", "admin"), signupHandler.Cancel)

		// Attendance (door scanning; staff only)
		api.POST("/attendance/issue", middleware.RequireRole("staff", "admin"), attendanceHandler.Issue)
		api.POST("/attendance/verify", middleware.RequireRole("staff", "admin"), attendanceHandler.Verify)
	}

	// WebSocket check-in feed (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (QR ticket emails)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if ticketMailer.Enabled() {
		go ticketProcessor.Run(workerCtx)
	} else {
		logger.Warn("smtp not configured, ticket emails disabled")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
