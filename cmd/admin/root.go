package main

import (
	"context"
	"dilse/backend/internal/config"
	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// adminStore is the part of storage.Service the operator commands use.
type adminStore interface {
	BanUser(anonID string, reason string) (time.Duration, error)
	UnbanUser(anonID string) error
	BanLevel(anonID string) (int, error)
	IsUserBanned(anonID string) (bool, error)
	GetRecentRooms(limit int) ([]models.ChatRoom, error)
	GetRoomByID(roomID string) (*models.ChatRoom, error)
	GetChatHistory(roomID string) ([]models.ChatHistory, error)
	GetSearchingUsers() ([]string, error)
	SubscribePairEvents(ctx context.Context) <-chan models.PairEvent
	PublishPairEvent(evt models.PairEvent) error
}

var (
	store     adminStore
	closeFunc = func() {}

	// openStore is replaced in tests.
	openStore = openStorage
)

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator tool for the Dil Se signaling service",
	Long: `admin manages bans, inspects archived rooms and chat history, lists the
waiting-queue mirror and tails pair lifecycle events.

Connection settings come from the same environment (or .env file) as the
server: DATABASE_DSN, REDIS_ADDR, REDIS_PASSWORD, REDIS_DB.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, closer, err := openStore()
		if err != nil {
			return err
		}
		store, closeFunc = s, closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeFunc()
	},
}

func openStorage() (adminStore, func(), error) {
	_ = godotenv.Load()
	cfg := config.LoadStorage()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	closer := func() {
		_ = rdb.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return storage.NewStorageService(db, rdb), closer, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
