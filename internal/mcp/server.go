package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/marginalia/internal/auth"
)

// Config contains server configuration.
type Config struct {
	API           Workbench
	Verifier      TokenVerifier
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	// LocalUser is the identity used when auth is off.
	LocalUser auth.Identity
	Version   string
	Logger    *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "marginalia",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerDocResources(server)

	// Middleware added later wraps earlier middleware, so identity is
	// attached before traffic is logged.
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	// Stdio is always a local, single-user session.
	if cfg.TransportMode != "stdio" && cfg.AuthEnabled && cfg.Verifier != nil {
		server.AddReceivingMiddleware(authMiddleware(cfg.Verifier))
	} else {
		local := cfg.LocalUser
		if local.UserID == "" {
			local = auth.Identity{UserID: "local", Name: "Local User"}
		}
		if local.Initials == "" {
			local.Initials = auth.InitialsFor(local.DisplayName())
		}
		server.AddReceivingMiddleware(localIdentityMiddleware(local))
	}

	registerTools(server, NewHandler(cfg.API), logger)

	return server
}
