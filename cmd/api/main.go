package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/agrihub/agrihub/internal/config"
	"github.com/agrihub/agrihub/internal/infra"
	"github.com/agrihub/agrihub/internal/logging"
	"github.com/agrihub/agrihub/internal/routes"
	"github.com/agrihub/agrihub/internal/server"
	"github.com/agrihub/agrihub/internal/sweeper"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName, cfg.AppEnv)

	ctx := context.Background()

	var mongoDB *mongo.Database
	if cfg.MongoURI != "" {
		client, db, err := infra.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("connect mongo", "error", err)
			return 1
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("disconnect mongo", "error", err)
			}
		}()
		mongoDB = db
	}

	var pool *pgxpool.Pool
	if cfg.MongoURI == "" && cfg.DatabaseURL != "" {
		pool, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			return 1
		}
		defer pool.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			return 1
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	sweep, err := sweeper.New(cfg.SweepInterval, logger)
	if err != nil {
		logger.Error("build sweeper", "error", err)
		return 1
	}

	srv, err := server.New(routes.Deps{
		Cfg:     cfg,
		Mongo:   mongoDB,
		DB:      pool,
		Cache:   cache,
		Logger:  logger,
		Sweeper: sweep,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		return 1
	}
	sweep.Start()

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Address())
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return 1
		}
		return 0
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	sweep.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return 1
	}

	logger.Info("server exited cleanly")
	return 0
}
