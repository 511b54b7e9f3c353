package auth

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID    string
	Name      string
	Initials  string
	Color     string
	ExpiresAt time.Time
	// WriterID identifies the client session issuing writes. Optional.
	WriterID string
}

// Expired reports whether the identity's credentials have lapsed at now.
// A zero ExpiresAt never expires.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// DisplayName returns Name, falling back to the user ID.
func (i Identity) DisplayName() string {
	if strings.TrimSpace(i.Name) != "" {
		return i.Name
	}
	return i.UserID
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, if present.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// WithWriter returns a context whose identity carries writerID.
// It is a no-op when ctx has no identity.
func WithWriter(ctx context.Context, writerID string) context.Context {
	id, ok := IdentityFrom(ctx)
	if !ok || writerID == "" {
		return ctx
	}
	id.WriterID = writerID
	return WithIdentity(ctx, id)
}

// InitialsFor derives up to two uppercase initials from a display name.
func InitialsFor(name string) string {
	fields := strings.Fields(name)
	var b strings.Builder
	for _, f := range fields {
		if utf8.RuneCountInString(b.String()) >= 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(f)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
