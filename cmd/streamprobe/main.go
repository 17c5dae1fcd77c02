// streamprobe connects to the desk stream and prints parsed messages to
// the console. Useful for verifying connectivity and eyeballing traffic
// without starting a full session.
//
// Usage: go run ./cmd/streamprobe --config configs/desksync.local.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeops/desksync/internal/config"
	"github.com/tradeops/desksync/internal/dispatch"
	"github.com/tradeops/desksync/internal/sched"
	"github.com/tradeops/desksync/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/desksync.example.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full envelope JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	timers := sched.New()
	defer timers.Close()

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

	manager.Subscribe(func(tr stream.Transition) {
		fmt.Printf("[STATE] %s -> %s", tr.From, tr.To)
		if tr.Err != nil {
			fmt.Printf(" (%v)", tr.Err)
		}
		fmt.Println()
	})

	dispatcher := dispatch.New(manager.Messages(), logger)

	dispatcher.Subscribe(dispatch.TopicEntityUpdate, func(env stream.Envelope) {
		if *verbose {
			data, _ := json.MarshalIndent(env, "", "  ")
			fmt.Printf("[ENTITY] %s\n", data)
			return
		}
		u, err := dispatch.ParseEntityUpdate(env)
		if err != nil {
			fmt.Printf("[ENTITY] parse error: %v\n", err)
			return
		}
		fmt.Printf("[ENTITY] id=%s fields=%d at=%s\n",
			u.EntityID, len(u.Fields), u.Timestamp.Format(time.RFC3339))
	})

	dispatcher.Subscribe(dispatch.TopicNotification, func(env stream.Envelope) {
		if *verbose {
			data, _ := json.MarshalIndent(env, "", "  ")
			fmt.Printf("[NOTIFY] %s\n", data)
			return
		}
		n, err := dispatch.ParseNotification(env)
		if err != nil {
			fmt.Printf("[NOTIFY] parse error: %v\n", err)
			return
		}
		fmt.Printf("[NOTIFY] event=%s priority=%s title=%q\n", n.Event, n.Priority, n.Title)
	})

	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := dispatcher.Stats()
				logger.Info("stats",
					"state", manager.State().String(),
					"delivered", s.Delivered,
					"unhandled", s.Unhandled,
					"handler_panics", s.HandlerPanics,
				)
			}
		}
	}()

	logger.Info("probe streaming - press Ctrl+C to stop", "url", cfg.Stream.URL)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	manager.Stop(shutdownCtx)
	dispatcher.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}
