package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dishahealth/coach/internal/api"
	"github.com/dishahealth/coach/internal/budget"
	"github.com/dishahealth/coach/internal/chat"
	"github.com/dishahealth/coach/internal/config"
	"github.com/dishahealth/coach/internal/conversation"
	"github.com/dishahealth/coach/internal/memory"
	"github.com/dishahealth/coach/internal/prompt"
	"github.com/dishahealth/coach/internal/protocol"
	"github.com/dishahealth/coach/internal/provider"
	pgstore "github.com/dishahealth/coach/internal/store"
	"github.com/dishahealth/coach/internal/store/memstore"
	"github.com/dishahealth/coach/internal/tokens"
	"github.com/dishahealth/coach/internal/typing"
	"github.com/dishahealth/coach/internal/user"
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
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.String("path", cfgPath), zap.Error(err))
	}
	if cfg.Log.Level != "" {
		if lvl, lErr := zapcore.ParseLevel(cfg.Log.Level); lErr == nil {
			logger = logger.WithOptions(zap.IncreaseLevel(lvl))
		} else {
			logger.Warn("unknown log level", zap.String("level", cfg.Log.Level))
		}
	}
	logger.Info("Starting Disha...", zap.String("config", cfgPath))

	llm, err := provider.New(cfg.ProviderConfig(), logger)
	if err != nil {
		logger.Fatal("failed to create provider", zap.Error(err))
	}
	logger.Info("Provider ready", zap.String("provider", llm.Name()), zap.String("model", llm.Model()))

	ctx := context.Background()

	// Storage: PostgreSQL when configured, in-memory otherwise.
	var (
		users     user.Repository
		turns     conversation.Repository
		facts     memory.Repository
		protocols protocol.Repository
		dbCheck   api.HealthCheck
		pgStore   *pgstore.Store
	)
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Fatal("PostgreSQL unavailable", zap.Error(pgErr))
		}
		if mErr := ps.Migrate(); mErr != nil {
			logger.Fatal("migration failed", zap.Error(mErr))
		}
		pgStore = ps
		users, turns, facts, protocols = ps.Users(), ps.Turns(), ps.Facts(), ps.Protocols()
		dbCheck = ps.Ping
	} else {
		logger.Warn("no database configured, history is kept in memory only")
		users, turns, facts, protocols = memstore.NewUsers(), memstore.NewTurns(), memstore.NewFacts(), memstore.NewProtocols()
	}

	// Typing indicator: Redis when configured.
	var (
		typingStore typing.Store = typing.NewMemStore()
		redisCheck  api.HealthCheck
		rdb         *redis.Client
	)
	if cfg.Database.Redis.URL != "" {
		opts, rErr := redis.ParseURL(cfg.Database.Redis.URL)
		if rErr != nil {
			logger.Fatal("invalid redis url", zap.Error(rErr))
		}
		rdb = redis.NewClient(opts)
		if pErr := rdb.Ping(ctx).Err(); pErr != nil {
			logger.Warn("Redis unreachable at startup", zap.Error(pErr))
		}
		typingStore = typing.NewRedisStore(rdb, typing.TTLFor(cfg.ChatConfig().GenerationTimeout))
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	counter := tokens.NewTiktoken(llm.Model(), logger)
	memService := memory.NewService(facts, logger)

	orch := chat.New(cfg.ChatConfig(), chat.Deps{
		Users:     users,
		Turns:     turns,
		Memory:    memService,
		Protocols: protocols,
		Provider:  llm,
		Typing:    typingStore,
		Extractor: memory.NewExtractor(llm, logger),
		Matcher:   protocol.NewMatcher(cfg.MatchCap()),
		Assembler: prompt.NewAssembler(),
		Truncator: budget.NewTruncator(cfg.BudgetConfig(), counter, logger),
		Counter:   counter,
		Cadence:   chat.EveryN(cfg.Memory.ExtractEvery),
	}, logger)

	handler := api.NewHandler(api.Deps{
		Users:       users,
		Turns:       turns,
		Memory:      memService,
		Protocols:   protocols,
		Typing:      typingStore,
		Chat:        orch,
		Database:    dbCheck,
		Redis:       redisCheck,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Disha listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Disha...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	orch.Wait()
	if rdb != nil {
		rdb.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}
