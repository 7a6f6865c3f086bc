// Command disha-init applies database migrations and seeds the default
// protocol library.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dishahealth/coach/internal/config"
	"github.com/dishahealth/coach/internal/protocol"
	pgstore "github.com/dishahealth/coach/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/disha.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	if cfg.Database.Postgres.DSN == "" {
		logger.Fatal("database.postgres.dsn is required")
	}

	ctx := context.Background()
	s, err := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	defer s.Close()

	if err := s.Migrate(); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	added, err := s.Protocols().Seed(ctx, protocol.DefaultProtocols())
	if err != nil {
		logger.Fatal("seeding protocols failed", zap.Error(err))
	}
	logger.Info("Database initialized", zap.Int("protocols_added", added))
}
