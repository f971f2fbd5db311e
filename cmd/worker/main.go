// Package main runs the background job worker (QR ticket emails) standalone.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-events/backend/config"
	"github.com/lumen-events/backend/internal/attendance"
	"github.com/lumen-events/backend/internal/events"
	"github.com/lumen-events/backend/internal/mailer"
	"github.com/lumen-events/backend/internal/signups"
	"github.com/lumen-events/backend/internal/worker"
	"github.com/lumen-events/backend/pkg/database"
	"github.com/lumen-events/backend/pkg/queue"
	"github.com/lumen-events/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	ticketMailer := mailer.New(mailer.Config{
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		User:        cfg.Email.SMTPUser,
		Pass:        cfg.Email.SMTPPass,
	}, logger)
	if !ticketMailer.Enabled() {
		logger.Fatal("smtp not configured")
	}

	attendanceSvc := attendance.NewService(attendance.NewRepository(pool), attendance.Options{
		VerifyBaseURL: cfg.Attendance.VerifyBaseURL,
		QRSize:        cfg.Attendance.QRSize,
	}, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewTicketProcessor(jobQueue,
		signups.NewRepository(pool), events.NewRepository(pool),
		attendanceSvc, ticketMailer, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
