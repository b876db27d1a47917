package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/appdevjohn/Social-Network-Backend/internal/attachments"
	"github.com/appdevjohn/Social-Network-Backend/internal/auth"
	"github.com/appdevjohn/Social-Network-Backend/internal/config"
	"github.com/appdevjohn/Social-Network-Backend/internal/groups"
	"github.com/appdevjohn/Social-Network-Backend/internal/messaging"
	"github.com/appdevjohn/Social-Network-Backend/internal/middleware"
	"github.com/appdevjohn/Social-Network-Backend/internal/presence"
	"github.com/appdevjohn/Social-Network-Backend/internal/service"
	"github.com/appdevjohn/Social-Network-Backend/internal/storage/sqlite"
	"github.com/appdevjohn/Social-Network-Backend/internal/tasks"
	"github.com/appdevjohn/Social-Network-Backend/internal/transport/ws"
	"github.com/appdevjohn/Social-Network-Backend/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath, sqlite.WithQueryTimeout(cfg.QueryTimeout))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.DBPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, closeFiles, err := openAttachments(ctx, cfg.Attachments)
	if err != nil {
		return err
	}
	defer closeFiles()
	logger.Info("Attachment storage initialized", "backend", cfg.Attachments.Backend)

	runner := tasks.NewRunner(cfg.Tasks.MaxConcurrent, cfg.Tasks.Timeout, logger)
	releaser := attachments.NewReleaser(runner, files)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store)

	hub := presence.NewHub(presence.NewTable(), jwtManager, logger)
	fanout := presence.NewFanout(store, hub, cfg.Fanout.Concurrency, cfg.Fanout.PushTimeout, logger)

	groupSvc := groups.NewService(store, releaser, logger)
	msgSvc := messaging.NewService(store, runner,
		messaging.WithNotifier(fanout),
		messaging.WithReleaser(releaser),
		messaging.WithLogger(logger),
	)

	prefix := cfg.Attachments.URLPrefix
	authed := connect.WithInterceptors(
		middleware.RequireAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		service.ValidationInterceptor(),
	)
	optional := connect.WithInterceptors(
		middleware.OptionalAuth(jwtManager),
		middleware.LoggingInterceptor(logger),
		service.ValidationInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(service.NewAuthServiceHandler(
		service.NewAuthService(authenticator, jwtManager, store, prefix, logger), optional))
	mux.Handle(service.NewGroupServiceHandler(
		service.NewGroupService(groupSvc, prefix, logger), authed))
	mux.Handle(service.NewMessageServiceHandler(
		service.NewMessageService(msgSvc, groupSvc, prefix, logger), authed))

	mux.Handle("/ws", ws.NewHandler(hub, msgSvc,
		ws.WithRateLimit(cfg.WebSocket.FramesPerSecond, cfg.WebSocket.Burst),
		ws.WithWriteTimeout(cfg.Fanout.PushTimeout),
		ws.WithURLPrefix(prefix),
		ws.WithLogger(logger),
	))

	uploads := service.NewUploadHandler(files, store, jwtManager, cfg.Attachments.MaxUploadBytes, prefix, logger)
	mux.HandleFunc("POST /upload", uploads.Upload)
	if strings.HasPrefix(prefix, "/") {
		// Refs are served by this process only when the prefix is a local path.
		mux.HandleFunc("GET "+strings.TrimSuffix(prefix, "/")+"/{ref}", uploads.Serve)
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(logger, corsMiddleware(mux)), &http2.Server{})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown incomplete", "error", err)
	}
	hub.Close()
	runner.Close()
	logger.Info("Server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel)

	// Opening the store applies pending migrations.
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("Database migrated", "database", cfg.DBPath)
	return store.Close()
}

// openAttachments builds the configured attachment backend and its cleanup.
func openAttachments(ctx context.Context, cfg config.AttachmentsConfig) (attachments.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendGCS:
		gcs, err := attachments.NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open GCS bucket %s: %w", cfg.Bucket, err)
		}
		return gcs, func() { gcs.Close() }, nil
	default:
		disk, err := attachments.NewDiskStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return disk, func() {}, nil
	}
}

// loggingMiddleware logs every HTTP request that is not an RPC; RPCs are
// logged by the Connect interceptor.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if strings.HasPrefix(r.URL.Path, "/social.v1.") || r.URL.Path == "/metrics" {
			return
		}
		logger.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
