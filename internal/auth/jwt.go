package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthorized indicates invalid or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenExpired indicates the bearer token was valid but has lapsed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the JWT claims understood by the workbench.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// Verifier validates HS256 bearer tokens and turns them into identities.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Verify parses token and returns the caller identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthorized
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	expired := errors.Is(err, jwt.ErrTokenExpired)
	if err != nil && !expired {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	id := Identity{
		UserID:   claims.Subject,
		Name:     claims.Name,
		Initials: InitialsFor(claims.Name),
		Color:    claims.Color,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	if expired {
		// The signature checked out; callers may still name the user.
		return id, ErrTokenExpired
	}
	return id, nil
}

// Issue signs a token for id valid for ttl. Used by the CLI and tests.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:  id.Name,
		Color: id.Color,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
