package main

import (
	"context"
	"dilse/backend/internal/api/handler"
	"dilse/backend/internal/chathub"
	"dilse/backend/internal/complaint"
	"dilse/backend/internal/config"
	"dilse/backend/internal/logging"
	"dilse/backend/internal/storage"
	"dilse/backend/internal/telegram"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	healthServiceName = "dilse.signaling"
	shutdownTimeout   = 10 * time.Second
)

func setupDependencies(cfg *config.Config, logger *logrus.Logger) (*gorm.DB, *redis.Client, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info("Database and Redis connections established")
	return db, rdb, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file loaded, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting Dil Se signaling backend...")

	db, rdb, err := setupDependencies(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up dependencies")
	}
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}
	if n, err := s.CloseStaleRooms(); err != nil {
		logger.WithError(err).Warn("Failed to close stale rooms")
	} else if n > 0 {
		logger.WithField("rooms", n).Info("Closed rooms left open by a previous run")
	}
	if err := s.ClearSearchQueue(); err != nil {
		logger.WithError(err).Warn("Failed to clear search queue mirror")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := chathub.NewManagerService(s, chathub.Options{
		RequeueDelay:     cfg.RequeueDelay,
		MaxMessageLength: cfg.MaxMessageLength,
		Filter: chathub.MatchFilter{
			SameCity:  cfg.MatchSameCity,
			MaxAgeGap: cfg.MatchMaxAgeGap,
		},
		PersistHistory: cfg.PersistHistory,
	}, logger)
	hub.SetComplaintHandler(complaint.NewService(s, logger))

	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	go hub.FollowBans(s.SubscribePairEvents(ctx))

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBotService(cfg.TelegramToken, hub, s, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start Telegram bot")
		}
		go bot.Run(ctx)
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set, Telegram transport disabled")
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, s, s, cfg, logger).RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.WithError(err).Fatalf("Failed to listen on %s", cfg.GRPCAddr)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		logger.Infof("gRPC health server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Error("gRPC server stopped")
		}
	}()

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.WithField("signal", sig.String()).Info("Shutting down...")

	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server forced to close")
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	cancel()
	<-hubDone

	if err := rdb.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close Redis client")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("Server exited")
}
