package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/telearc/archive-console/internal/logger"
	"github.com/telearc/archive-console/internal/mockserver"
)

func main() {
	// 1. Load .env and settings
	_ = godotenv.Load()
	port := envInt("MOCK_PORT", 8090)
	feedSeconds := envInt("MOCK_FEED_SECONDS", 5)

	// 2. Initialize logger
	log, err := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	log.Info().Int("port", port).Msg("starting mock archive backend")

	// 3. Setup context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	// 4. Seed data and start the push hub
	data := mockserver.NewDataset()
	hub := mockserver.NewHub(log)
	go hub.Run()

	// 5. Build the server
	server := mockserver.NewServer(data, hub, log)

	// 6. Start the synthetic message feed
	if feedSeconds > 0 {
		feed := mockserver.NewFeed(server, time.Duration(feedSeconds)*time.Second)
		go feed.Run(ctx)
	}

	// 7. Serve until shutdown
	go func() {
		if err := server.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
