// Package main is the entry point for a single-plugin NVR host running the
// collision-prediction plugin.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Spatial-NVR/SpatialNVR/internal/config"
	"github.com/Spatial-NVR/SpatialNVR/internal/database"
	"github.com/Spatial-NVR/SpatialNVR/internal/eventbus"
	"github.com/Spatial-NVR/SpatialNVR/internal/logging"
	collision "github.com/Spatial-NVR/SpatialNVR/plugins/nvr-collision-prediction"
	"github.com/Spatial-NVR/SpatialNVR/sdk"
)

const defaultAddress = "0.0.0.0:8090"

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logBuffer := logging.GetLogBuffer()
	handler := logging.NewStreamHandler(logBuffer, os.Stdout, logLevel)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataPath := getEnv("DATA_PATH", "/data")
	configPath := getEnv("CONFIG_PATH", filepath.Join(dataPath, "config.yaml"))
	_ = os.MkdirAll(dataPath, 0755)

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Watch(); err != nil {
		slog.Warn("config file watch unavailable", "error", err)
	}

	dbConfig := database.DefaultConfig(dataPath)
	if cfg.System.Database.Path != "" {
		dbConfig.Path = cfg.System.Database.Path
	}
	db, err := database.Open(dbConfig)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	bus, err := eventbus.New(eventbus.DefaultConfig(), logger)
	if err != nil {
		slog.Error("failed to start event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Stop()

	pluginConfig := map[string]interface{}{}
	if pc, ok := cfg.Plugins["nvr-collision-prediction"]; ok {
		pluginConfig = pc.Config
	}

	runtime := sdk.NewPluginRuntime("nvr-collision-prediction", bus.Conn(), db.DB, pluginConfig, logger)

	plugin := collision.New()
	if err := plugin.Initialize(ctx, runtime); err != nil {
		slog.Error("failed to initialize collision prediction plugin", "error", err)
		os.Exit(1)
	}
	if err := plugin.Start(ctx); err != nil {
		slog.Error("failed to start collision prediction plugin", "error", err)
		os.Exit(1)
	}
	defer func() { _ = plugin.Stop(context.Background()) }()

	router := setupRouter(plugin, db)

	addr := getEnv("LISTEN_ADDR", defaultAddress)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

func setupRouter(plugin *collision.Plugin, db *database.DB) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := plugin.Health()
		status := "healthy"
		if health.State != sdk.HealthStateHealthy {
			status = string(health.State)
		}
		if err := db.Health(r.Context()); err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"%s","message":"%s"}`, status, health.Message)
	})

	r.Route("/api/v1/plugins/nvr-collision-prediction", func(r chi.Router) {
		r.Mount("/", plugin.Routes())
	})

	return r
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
