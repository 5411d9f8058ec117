// Command nvr-collision-prediction runs the collision-prediction plugin as
// a standalone service, outside of a full NVR host process.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Spatial-NVR/SpatialNVR/internal/database"
	"github.com/Spatial-NVR/SpatialNVR/internal/eventbus"
	collision "github.com/Spatial-NVR/SpatialNVR/plugins/nvr-collision-prediction"
	"github.com/Spatial-NVR/SpatialNVR/sdk"
)

func main() {
	dataPath := os.Getenv("COLLISION_DATA_PATH")
	if dataPath == "" {
		dataPath = "/tmp/nvr-collision-data"
	}

	listenAddr := os.Getenv("COLLISION_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":5020"
	}

	log.Printf("starting collision prediction plugin on %s", listenAddr)
	log.Printf("data path: %s", dataPath)

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db, err := database.Open(database.DefaultConfig(dataPath))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	bus, err := eventbus.New(eventbus.DefaultConfig(), logger)
	if err != nil {
		log.Fatalf("failed to start event bus: %v", err)
	}
	defer bus.Stop()

	runtime := sdk.NewPluginRuntime("nvr-collision-prediction", bus.Conn(), db.DB, map[string]interface{}{
		"camera_id": os.Getenv("COLLISION_CAMERA_ID"),
	}, logger)

	plugin := collision.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := plugin.Initialize(ctx, runtime); err != nil {
		log.Fatalf("failed to initialize plugin: %v", err)
	}
	if err := plugin.Start(ctx); err != nil {
		log.Fatalf("failed to start plugin: %v", err)
	}
	defer func() { _ = plugin.Stop(context.Background()) }()

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware)
	router.Route("/api/v1/plugins/nvr-collision-prediction", func(r chi.Router) {
		r.Mount("/", plugin.Routes())
	})

	server := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		log.Printf("collision prediction API listening on %s", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
}

// corsMiddleware permits local development tooling to reach this service
// directly when it isn't fronted by the host's router.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
