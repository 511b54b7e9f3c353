package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/marginalia/internal/auth"
	"github.com/rpggio/marginalia/internal/config"
	"github.com/rpggio/marginalia/internal/mcp"
	"github.com/rpggio/marginalia/internal/sqlstore"
	"github.com/rpggio/marginalia/internal/transport"
	"github.com/rpggio/marginalia/internal/workbench"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		fileWriter, err := newLogFileWriter(cfg.Log.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer fileWriter.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	if cfg.DB.Driver == "sqlite" {
		if err := ensureDBDir(cfg.DB.DSN); err != nil {
			logger.Error("failed to prepare database path", "error", err)
			os.Exit(1)
		}
	}

	db, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background()); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	api := workbench.New(db, workbench.Config{
		PollInterval:      cfg.Sync.PollInterval,
		SuppressionWindow: cfg.Sync.SuppressionWindow,
		SaveDebounce:      cfg.Sync.SaveDebounce,
		ForkConcurrency:   cfg.Sync.ForkConcurrency,
		InviteTTL:         cfg.Invite.TTL,
	}, logger)

	localUser := auth.Identity{UserID: cfg.Auth.DefaultUser, Name: cfg.Auth.DefaultUser}
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	mcpServer := mcp.NewServer(mcp.Config{
		API:           api,
		Verifier:      verifier,
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		LocalUser:     localUser,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(logger, mcpServer)
		return
	}

	authMiddleware := transport.LocalIdentity(localUser)
	if cfg.Auth.Enabled {
		authMiddleware = transport.AuthMiddleware(verifier)
	}
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)
	router := transport.NewServer(mcp.NewHandler(api), transport.Options{
		Auth:           authMiddleware,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MCP:            mcpHandler,
		Logger:         logger,
	})
	runHTTPMode(logger, router, cfg.Server.Host, cfg.Server.Port, cfg.Auth.Enabled)
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(logger *slog.Logger, handler http.Handler, host string, port int, authEnabled bool) {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr, "auth", authEnabled)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// ensureDBDir creates the parent directory of a file-backed SQLite DSN.
func ensureDBDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
