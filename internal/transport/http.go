package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/marginalia/internal/mcp"
	"github.com/rs/cors"
)

// RPCHandler dispatches workbench methods.
type RPCHandler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// Options configures the HTTP router.
type Options struct {
	// Auth attaches the caller identity. Nil leaves requests anonymous.
	Auth func(http.Handler) http.Handler
	// AllowedOrigins lists browser origins allowed by CORS. Empty allows any.
	AllowedOrigins []string
	// MCP, when set, is mounted at /mcp.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	handler RPCHandler
	logger  *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(handler RPCHandler, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Mcp-Session-Id", WriterHeader},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	}).Handler)

	srv := &Server{handler: handler, logger: logger}
	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Use(WriterMiddleware)

		r.Post("/rpc", srv.handleRPC)
		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
			r.Handle("/mcp/*", opts.MCP)
		}
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(http.MaxBytesReader(w, r.Body, MaxRequestBytes))
	if err != nil {
		WriteError(w, nil, ErrorCode(err), err.Error(), nil)
		return
	}

	result, err := s.handler.Handle(r.Context(), req.Method, req.Params)
	if req.IsNotification() {
		if err != nil {
			s.logger.Warn("rpc notification failed", "method", req.Method, "error", err)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.writeHandlerError(w, req, err)
		return
	}

	WriteResult(w, req.ID, result)
}

func (s *Server) writeHandlerError(w http.ResponseWriter, req Request, err error) {
	if errors.Is(err, mcp.ErrUnknownMethod) {
		WriteError(w, req.ID, ErrMethodNotFound, err.Error(), nil)
		return
	}
	apiErr := mcp.MapError(err)
	if apiErr == nil {
		s.logger.Error("rpc failed", "method", req.Method, "error", err)
		WriteError(w, req.ID, ErrInternal, "internal error", nil)
		return
	}
	code := ErrApplication
	if apiErr.Code == "INVALID_INPUT" {
		code = ErrInvalidParams
	}
	WriteError(w, req.ID, code, apiErr.Message, apiErr)
}
