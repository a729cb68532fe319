// keygen issues an API key for an existing user and prints the raw key
// once. Only the hash is stored.
//
//	keygen -user 6f1c2a4e-1b7e-4c55-9a57-2d3f1e0b9c11 -name ci -rate 120
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/logger"
	"github.com/user/linkpulse/internal/repository"
	"github.com/user/linkpulse/internal/service"
	"go.uber.org/zap"
)

func main() {
	userFlag := flag.String("user", "", "owner user id (UUID)")
	name := flag.String("name", "default", "key name")
	rate := flag.Int("rate", 60, "requests per minute allowed for the key")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen: -user must be a UUID")
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.IsDevelopment(), cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	postgres, err := database.NewPostgresDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer postgres.Close()

	if _, err := repository.NewUserRepository(postgres.Pool).GetPlan(ctx, userID); err != nil {
		log.Fatal("Unknown user", zap.String("user_id", userID.String()), zap.Error(err))
	}

	keys := service.NewAPIKeyService(repository.NewAPIKeyRepository(postgres.Pool), log)
	rawKey, key, err := keys.GenerateKey(ctx, userID, *name, *rate)
	if err != nil {
		log.Fatal("Failed to create API key", zap.Error(err))
	}

	log.Info("API key created", zap.String("key_id", key.ID.String()), zap.String("user_id", userID.String()))
	fmt.Println(rawKey)
}
