package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harshithgowdakt/heapdb/internal/config"
	"github.com/harshithgowdakt/heapdb/internal/engine"
	"github.com/harshithgowdakt/heapdb/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	dataDir := flag.String("data-dir", "", "Data directory path (overrides config)")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	eng, err := engine.Open(cfg.DataDir, cfg.ArchiveMode, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer eng.Close()

	fmt.Printf("heapdb - a row-store engine with swap-based materialized view refresh\n")
	fmt.Printf("Data directory: %s\n", cfg.DataDir)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	srv := server.NewServer(eng, eng.WAL(), cfg.Addr, logger)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
