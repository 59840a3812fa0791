package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Alijan123a/OpenLibrary/pkg/logger"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/auth"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/clients"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/config"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/db"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/events"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/httpapi"
	"github.com/Alijan123a/OpenLibrary/services/library/internal/repo"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Library service starting")

	// Connect to database
	log.Info("Connecting to database...")
	database, err := db.Connect(cfg.PGDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Run migrations
	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	bookRepo := repo.NewBookRepository(database, log)
	shelfRepo := repo.NewShelfRepository(database, log)
	inventoryRepo := repo.NewInventoryRepository(database, log)
	borrowRepo := repo.NewBorrowRepository(database, inventoryRepo, log)

	// Connect to RabbitMQ when configured; events are optional
	var publisher httpapi.EventPublisher
	if cfg.RabbitMQURL != "" {
		log.Info("Connecting to RabbitMQ")
		p, err := events.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("RabbitMQ unavailable, events disabled", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	// Token verification against the Auth Service, with a short-lived cache
	verifier := auth.NewClient(cfg.AuthVerifyURL, auth.NewMemoryTokenCache(auth.DefaultCacheTTL), log)

	// Internal Auth Service client for student number lookups
	authClient := clients.NewAuthServiceClient(cfg.AuthInternalURL, cfg.AuthInternalKey, log)

	server := httpapi.NewServer(bookRepo, shelfRepo, inventoryRepo, borrowRepo, verifier, authClient, publisher, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      server.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
}
