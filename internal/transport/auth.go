package transport

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/marginalia/internal/auth"
)

// WriterHeader carries the client session id used to stamp saves.
const WriterHeader = "X-Marginalia-Writer"

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// AuthMiddleware attaches the bearer token's identity to the request.
// Requests without a token pass through anonymously; the workbench refuses
// them per operation. Expired tokens keep their identity so the refusal can
// say the session expired.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(token)
			if err != nil && !errors.Is(err, auth.ErrTokenExpired) {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// LocalIdentity attaches a fixed identity to every request. Used when auth
// is disabled.
func LocalIdentity(id auth.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// WriterMiddleware copies the X-Marginalia-Writer header into the caller's
// identity.
func WriterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if writer := r.Header.Get(WriterHeader); writer != "" {
			next.ServeHTTP(w, r.WithContext(auth.WithWriter(r.Context(), writer)))
			return
		}
		next.ServeHTTP(w, r)
	})
}
