package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tardnicus/wemb/internal/archive"
	"github.com/tardnicus/wemb/internal/bot"
	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/monitoring"
	"github.com/tardnicus/wemb/internal/notifications"
	"github.com/tardnicus/wemb/internal/scheduler"
	"github.com/tardnicus/wemb/internal/sources"
	"github.com/tardnicus/wemb/internal/store"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting wemb")

	// Open the criteria and processed-submission store
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	// Initialize the digest archive
	archiveStore, err := archive.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize archive: %v", err)
	}

	// Initialize notification service
	notificationService := notifications.NewService(cfg)

	// Initialize the submission source
	source, err := sources.NewSource(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize submission source: %v", err)
	}

	// Initialize monitoring service
	monitorService := monitoring.NewService(cfg, source, db, db, notificationService, archiveStore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the Telegram admin bot when configured
	if cfg.TelegramToken != "" {
		botService := bot.NewService(cfg, db)
		if err := botService.Start(ctx); err != nil {
			logrus.Fatalf("Failed to start Telegram bot: %v", err)
		}
		defer botService.Stop()
	} else {
		logrus.Info("Telegram bot disabled (no token configured)")
	}

	// Start the digest scheduler
	schedulerService := scheduler.NewService(cfg, monitorService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Follow the submission stream
	go func() {
		if err := monitorService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("Monitor stopped: %v", err)
		}
	}()

	// Set up HTTP server for health checks and metrics
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(monitorService)).Methods("GET")
	router.HandleFunc("/criteria", criteriaHandler(db)).Methods("GET")

	// Manual trigger endpoint (for testing)
	router.HandleFunc("/digest", digestHandler(monitorService)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Stop the stream and the bot before closing the store they write to
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(monitorService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := monitorService.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(metrics))
	}
}

func criteriaHandler(db *store.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		criteria, err := db.ListAll(r.Context())
		if err != nil {
			logrus.Errorf("Failed to load criteria: %v", err)
			http.Error(w, `{"error":"failed to load criteria"}`, http.StatusInternalServerError)
			return
		}

		data, err := json.MarshalIndent(criteria, "", "  ")
		if err != nil {
			http.Error(w, `{"error":"failed to encode criteria"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func digestHandler(monitorService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if err := monitorService.RunDigest(); err != nil {
				logrus.Errorf("Manual digest trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Digest triggered"}`))
	}
}
