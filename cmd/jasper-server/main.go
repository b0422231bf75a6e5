// Package main provides the Jasper HTTP server.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jasperlabs/jasper-go/internal/config"
	"github.com/jasperlabs/jasper-go/internal/db"
	"github.com/jasperlabs/jasper-go/internal/engine"
	"github.com/jasperlabs/jasper-go/internal/llm"
	"github.com/jasperlabs/jasper-go/internal/metrics"
	"github.com/jasperlabs/jasper-go/internal/server"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("jasper-server starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = dbClient.Close(context.Background())
	}()

	if err := dbClient.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("JASPER_WIPE_DB") == "true" {
		wipeCtx, wipeCancel := context.WithTimeout(ctx, 30*time.Second)
		err := dbClient.WipeData(wipeCtx)
		wipeCancel()
		if err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Info("database wiped")
	}

	model, err := llm.NewModel(ctx, cfg)
	if err != nil {
		logger.Error("failed to create completion model", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	eng := engine.New(dbClient, model, collector, dbClient, logger, engine.Options{
		RetryCeiling:  cfg.RetryCeiling,
		ContextWindow: cfg.ContextWindow,
	})

	port, err := strconv.Atoi(cfg.ServerPort)
	if err != nil {
		logger.Error("invalid server port", "port", cfg.ServerPort)
		os.Exit(1)
	}

	srv := server.New(eng, dbClient, collector, logger, port)
	logger.Info("server ready", "port", port)

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
