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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/actuallystonmai/meme-recommendation-service/internal/cache"
	"github.com/actuallystonmai/meme-recommendation-service/internal/config"
	"github.com/actuallystonmai/meme-recommendation-service/internal/content"
	"github.com/actuallystonmai/meme-recommendation-service/internal/handler"
	"github.com/actuallystonmai/meme-recommendation-service/internal/hotscore"
	"github.com/actuallystonmai/meme-recommendation-service/internal/logging"
	"github.com/actuallystonmai/meme-recommendation-service/internal/recommend"
	"github.com/actuallystonmai/meme-recommendation-service/internal/repository"
	"github.com/actuallystonmai/meme-recommendation-service/internal/router"
	"github.com/actuallystonmai/meme-recommendation-service/internal/service"
	"github.com/actuallystonmai/meme-recommendation-service/seeds"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse database config")
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool); err != nil {
		logging.Fatal().Err(err).Msg("database not ready")
	}
	logging.Info().Msg("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	// for migrate-down using CLI command
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := runMigration(ctx, pool, "migrations/create_tables.down.sql"); err != nil {
			logging.Fatal().Err(err).Msg("failed to migrate down")
		}
		logging.Info().Msg("migrations dropped")
		return
	}

	if err := runMigration(ctx, pool, "migrations/create_tables.up.sql"); err != nil {
		logging.Fatal().Err(err).Msg("failed to migrate up")
	}

	// ------------ Setup Seed Data ---------------
	if err := checkSeed(ctx, pool); err != nil {
		logging.Fatal().Err(err).Msg("failed to check seed")
	}

	// ------------ Redis ---------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	resultCache := cache.NewCache(rdb, cfg.CacheTTL, logger)
	if err := resultCache.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("redis unavailable, continuing without a warm cache")
	}

	// ------------ Recommendation engine ---------------
	repo := repository.New(pool)
	classifier := hotscore.NewClassifier(cfg.HotScore)
	contentRec := content.NewRecommender(cfg.Content, repo)

	matrix := recommend.NewMatrixBuilder(cfg.Recommend, repo, repo, repo, resultCache, logger)
	cf := recommend.NewCollaborativeRecommender(cfg.Recommend, matrix, repo, logger)
	social := recommend.NewSocialRecommender(cfg.Recommend, matrix, repo, repo, logger)

	mixed := recommend.NewMixedEngine(cfg.Recommend, repo, contentRec, repo, logger,
		recommend.NewHotSource(repo),
		recommend.NewLatestSource(repo),
		contentRec,
		cf.AsSource(),
		social.AsSource(),
	).WithClassifier(classifier)
	strategy := recommend.NewStrategyAdjuster(cfg.Recommend, repo, contentRec, repo, classifier, logger)

	svc := service.NewService(service.Deps{
		Store:            repo,
		Cache:            resultCache,
		Mixed:            mixed,
		Collaborative:    cf,
		Social:           social,
		Strategy:         strategy,
		BatchConcurrency: cfg.BatchConcurrency,
		Logger:           logger,
	})
	h := handler.NewHandler(svc, cfg.Recommend, logger)

	// ---------------- Server --------------------
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(h, cfg.RequestTimeout, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		logging.Info().Int("attempt", i+1).Msg("waiting for database")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func runMigration(ctx context.Context, pool *pgxpool.Pool, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration %s: %w", path, err)
	}
	logging.Info().Str("file", path).Msg("migration applied")
	return nil
}

func checkSeed(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("check users count: %w", err)
	}
	if count > 0 {
		logging.Info().Int("users", count).Msg("database already seeded, skipping")
		return nil
	}
	return seeds.Setup(ctx, pool)
}
