package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tradeops/desksync/internal/api"
	"github.com/tradeops/desksync/internal/config"
	"github.com/tradeops/desksync/internal/database"
	"github.com/tradeops/desksync/internal/dispatch"
	"github.com/tradeops/desksync/internal/model"
	"github.com/tradeops/desksync/internal/notify"
	"github.com/tradeops/desksync/internal/notifylog"
	"github.com/tradeops/desksync/internal/poller"
	"github.com/tradeops/desksync/internal/prefs"
	"github.com/tradeops/desksync/internal/sched"
	"github.com/tradeops/desksync/internal/state"
	"github.com/tradeops/desksync/internal/stream"
	"github.com/tradeops/desksync/internal/throttle"
	"github.com/tradeops/desksync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/desksync.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting desksync",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"stream_url", cfg.Stream.URL,
		"api_url", cfg.API.BaseURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Notification preferences
	prefStore, err := prefs.NewStore(cfg.Preferences.Path, logger)
	if err != nil {
		logger.Error("failed to load preferences", "error", err)
		os.Exit(1)
	}

	// Shared timer scheduler
	timers := sched.New()
	defer timers.Close()

	// Notification log: database-backed when configured, in-memory
	// otherwise.
	var notifLog notify.Log
	var logWriter *notifylog.Writer
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logWriter = notifylog.NewWriter(notifylog.Config{
			BatchSize:     cfg.Database.Writer.BatchSize,
			FlushInterval: cfg.Database.Writer.FlushInterval,
		}, pool, logger)
		if err := logWriter.Start(ctx); err != nil {
			logger.Error("failed to start notification log writer", "error", err)
			os.Exit(1)
		}
		notifLog = logWriter
	} else {
		notifLog = notify.NewMemoryLog()
	}

	// Notification governor
	governor := notify.NewGovernor(notify.Config{}, prefStore, notifLog, timers, logger)
	defer governor.Close()

	// Entity state
	store := state.NewStore(cfg.Stream.BufferSize, logger)

	// Update throttler feeding the state store
	merger := throttle.New(throttle.Config{Window: cfg.Throttle.Window}, timers, store.ApplyMerged, logger)
	defer merger.Close()

	// Connection manager
	manager := stream.NewManager(stream.ManagerConfig{
		URL:               cfg.Stream.URL,
		APIKey:            cfg.Stream.APIKey,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		ReconnectBase:     cfg.Stream.ReconnectBaseDelay,
		ReconnectCap:      cfg.Stream.ReconnectMaxDelay,
		MaxAttempts:       cfg.Stream.MaxAttempts,
		WriteTimeout:      cfg.Stream.WriteTimeout,
		BufferSize:        cfg.Stream.BufferSize,
		MessageBufferSize: cfg.Stream.BufferSize,
	}, timers, logger)

	manager.OnFailure(func(err error) {
		governor.Publish(ctx, notify.Notification{
			Event:    "connection_lost",
			Priority: model.PriorityCritical,
			Title:    "Live updates unavailable",
			Message:  fmt.Sprintf("reconnect attempts exhausted: %v", err),
		})
	})

	// Stream dispatcher
	dispatcher := dispatch.New(manager.Messages(), logger)

	dispatcher.Subscribe(dispatch.TopicEntityUpdate, func(env stream.Envelope) {
		u, err := dispatch.ParseEntityUpdate(env)
		if err != nil {
			logger.Warn("dropping malformed entity update", "error", err)
			return
		}
		merger.Offer(u)
	})

	dispatcher.Subscribe(dispatch.TopicNotification, func(env stream.Envelope) {
		n, err := dispatch.ParseNotification(env)
		if err != nil {
			logger.Warn("dropping malformed notification", "error", err)
			return
		}
		governor.Publish(ctx, n)
	})

	// REST snapshot client and fallback poller
	apiClient := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	fallback := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		GracePeriod: cfg.Poller.GracePeriod,
		Timeout:     cfg.Poller.Timeout,
		Forced:      cfg.Poller.Forced,
	}, poller.APISource(apiClient), store, manager, logger)

	// Start pipeline back to front so nothing consumes a nil channel.
	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}
	if err := fallback.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	// Health endpoint
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, manager, store, fallback, dispatcher, governor, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Drain change notifications; consumers attach here in richer
		// frontends.
		for {
			select {
			case <-gctx.Done():
				return nil
			case snap := <-store.Changes():
				logger.Debug("entity updated", "entity", snap.EntityID, "source", snap.Source)
			}
		}
	})

	logger.Info("desksync running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown(shutdownCtx)
	manager.Stop(shutdownCtx)
	fallback.Stop(shutdownCtx)
	dispatcher.Stop(shutdownCtx)
	if logWriter != nil {
		logWriter.Stop(shutdownCtx)
	}
	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("desksync stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(path string, manager *stream.Manager, store *state.Store, fallback *poller.Poller, dispatcher *dispatch.Dispatcher, governor *notify.Governor, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		connState := manager.State()
		pollStats := fallback.Stats()
		storeStats := store.Stats()
		dispStats := dispatcher.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["connection"] = connState.String()
		health.Components["polling"] = pollStats.Polling
		health.Components["entities"] = storeStats.Entities
		health.Components["delivered"] = dispStats.Delivered
		health.Components["toasts"] = len(governor.ActiveToasts())

		switch connState {
		case stream.StateError:
			if !pollStats.Polling {
				health.Status = "unhealthy"
			} else {
				health.Status = "degraded"
			}
		case stream.StateConnected:
			// healthy
		default:
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/entities", func(w http.ResponseWriter, r *http.Request) {
		entities := store.All()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":    len(entities),
			"entities": entities,
		})
	})

	return mux
}
