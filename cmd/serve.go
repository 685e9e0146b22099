package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravelchat/ravel/internal/api"
	"github.com/ravelchat/ravel/internal/artifact"
	"github.com/ravelchat/ravel/internal/chat"
	"github.com/ravelchat/ravel/internal/classify"
	"github.com/ravelchat/ravel/internal/config"
	"github.com/ravelchat/ravel/internal/generate"
	"github.com/ravelchat/ravel/internal/log"
	"github.com/ravelchat/ravel/internal/observability"
	"github.com/ravelchat/ravel/internal/session"
	"github.com/ravelchat/ravel/internal/store"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 5 * time.Minute // a full SSE turn can stream for a while
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [addr]",
		Short: "Start the HTTP API server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				addr = args[0]
			}
			return runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (host:port), overrides config")
	return cmd
}

// runServe initializes dependencies and runs the HTTP API server until a
// termination signal arrives.
func runServe(addrOverride string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.ListenAddr
	if addrOverride != "" {
		if _, _, splitErr := net.SplitHostPort(addrOverride); splitErr != nil {
			return fmt.Errorf("invalid address %q: %w", addrOverride, splitErr)
		}
		addr = addrOverride
	}

	logger := log.New(log.Config{Level: cfg.SlogLevel(), JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting ravel", "version", AppVersion, "model", cfg.Model)

	shutdownTracing, err := observability.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer flushCancel()
		if flushErr := shutdownTracing(flushCtx); flushErr != nil {
			logger.Warn("trace flush failed", "error", flushErr)
		}
	}()

	kv, err := store.NewRedis(ctx, store.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if closeErr := kv.Close(); closeErr != nil {
			logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	sessions := session.New(kv, logger)
	artifacts := artifact.NewStore(kv, logger)

	generator := generate.NewOllama(generate.OllamaConfig{
		Host:   cfg.OllamaHost,
		Model:  cfg.Model,
		Logger: logger,
	})
	if pingErr := generator.Ping(ctx); pingErr != nil {
		logger.Warn("ollama not reachable at startup", "host", cfg.OllamaHost, "error", pingErr)
	}

	orch, err := chat.New(chat.Config{
		Sessions:  sessions,
		Artifacts: artifacts,
		Generator: generator,
		Logger:    logger,
		Options: generate.Options{
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			TopK:        cfg.TopK,
			NumCtx:      cfg.NumCtx,
			Unbounded:   cfg.Unbounded,
		},
		Context: chat.ContextBuilder{MaxMessages: cfg.MaxHistoryMessages},
		Classifier: classify.Config{
			TailWindow:  cfg.ClassifierTailWindow,
			PunctWindow: cfg.ClassifierPunctWindow,
			MinLength:   cfg.ClassifierMinLength,
		},
		Relay: chat.RelayConfig{
			PauseInterval:  cfg.PauseInterval(),
			ChunksPerPause: cfg.ChunksPerPause,
		},
	})
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:          logger,
		Orchestrator:    orch,
		Sessions:        sessions,
		Artifacts:       artifacts,
		StorePinger:     kv,
		GeneratorPinger: generator,
		CORSOrigins:     cfg.CORSOrigins,
		TrustProxy:      cfg.TrustProxy,
		RateBurst:       cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}
