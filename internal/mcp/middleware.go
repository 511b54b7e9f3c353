package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/marginalia/internal/auth"
)

// WriterHeader carries the client session id used to stamp saves.
const WriterHeader = "X-Marginalia-Writer"

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

func isProtocolMethod(method string) bool {
	return method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/")
}

// authMiddleware implements bearer token authentication as MCP middleware.
// A request without a token proceeds anonymously and is refused by the
// workbench; an expired token still names its user so the refusal can say
// the session expired.
func authMiddleware(verifier TokenVerifier) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if isProtocolMethod(method) {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return next(ctx, method, req)
			}

			header := extra.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" {
				return next(ctx, method, req)
			}

			id, err := verifier.Verify(token)
			if err != nil && !errors.Is(err, auth.ErrTokenExpired) {
				return nil, fmt.Errorf("unauthorized: %w", err)
			}
			id.WriterID = extra.Header.Get(WriterHeader)
			ctx = auth.WithIdentity(ctx, id)
			return next(ctx, method, req)
		}
	}
}

// localIdentityMiddleware attaches a fixed identity when auth is disabled.
func localIdentityMiddleware(id auth.Identity) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if _, ok := auth.IdentityFrom(ctx); !ok {
				ctx = auth.WithIdentity(ctx, id)
			}
			return next(ctx, method, req)
		}
	}
}
