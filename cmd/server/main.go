package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/airbadge/internal/auth"
	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/gdg-garage/airbadge/internal/database"
	"github.com/gdg-garage/airbadge/internal/handlers"
	"github.com/gdg-garage/airbadge/internal/logger"
	"github.com/gdg-garage/airbadge/internal/notifier"
	"github.com/gdg-garage/airbadge/internal/remotesync"
	"github.com/gdg-garage/airbadge/internal/session"
	"github.com/gdg-garage/airbadge/internal/storage"
	"github.com/gdg-garage/airbadge/internal/tracker"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	zapLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zapLogger.Sync()

	// Connect to Database
	db, err := database.Connect(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open database", zap.Error(err))
	}

	kv, err := storage.New(cfg, db, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to open local store", zap.Error(err))
	}

	authHandler := auth.NewAuthHandler(cfg, db, nil)

	factory := func(userID uint) (session.SyncClient, error) {
		return remotesync.NewClient(cfg.SyncEndpoint, authHandler.TokenSource(userID), zapLogger,
			remotesync.WithRetries(cfg.SyncMaxRetries, cfg.SyncInitialBackoff)), nil
	}
	opts := []session.Option{
		session.WithTrackerOptions(tracker.WithDebounce(cfg.SyncDebounce)),
	}

	discordNotifier, err := notifier.NewDiscordNotifier(cfg, db, zapLogger)
	if err != nil {
		zapLogger.Info("Discord notifier not initialized", zap.Error(err))
	} else {
		opts = append(opts, session.WithSubscriber(discordNotifier.HandleEvent))
	}

	sessions := session.NewManager(kv, factory, zapLogger, opts...)
	authHandler.SetSessions(sessions)

	progressHandler := handlers.NewProgressHandler(sessions, authHandler)
	syncHandler := handlers.NewSyncHandler(db, authHandler, zapLogger)

	// Initialize Router
	r := chi.NewRouter()

	// Register Routes
	handlers.RegisterRoutes(r, zapLogger, authHandler, progressHandler, syncHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	go func() {
		zapLogger.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	zapLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Flush sessions while the sync endpoint is still being served.
	if err := sessions.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to flush sessions", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server shutdown failed", zap.Error(err))
	}
	if closer, ok := kv.(interface{ Close() error }); ok {
		closer.Close()
	}
}
