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
	"github.com/karavan-app/karavan/internal/clock"
	"github.com/karavan-app/karavan/internal/database"
	"github.com/karavan-app/karavan/internal/logging"
	"github.com/karavan-app/karavan/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := logging.Setup(os.Getenv("KARAVAN_LOG_LEVEL"))

	port := os.Getenv("KARAVAN_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("KARAVAN_DB_PATH")
	if dbPath == "" {
		dbPath = "karavan.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		BotToken:        os.Getenv("KARAVAN_BOT_TOKEN"),
		VAPIDPublicKey:  os.Getenv("KARAVAN_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("KARAVAN_VAPID_PRIVATE_KEY"),
	}
	if cfg.BotToken == "" {
		logger.Warn("KARAVAN_BOT_TOKEN is empty, auth check disabled (development mode)")
	}

	srv := server.New(db, cfg, clock.System(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.Scheduler().Start(ctx)
	defer srv.Scheduler().Stop()

	// Drop stale rate-limit buckets so the map doesn't grow forever.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Karavan running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
