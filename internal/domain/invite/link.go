package invite

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/marginalia/internal/domain/project"
)

// JoinPathPrefix is the path under which invite links are served.
const JoinPathPrefix = "/join/"

// Link is a shareable invite.
type Link struct {
	Token     string       `json:"token"`
	Path      string       `json:"path"`
	ProjectID string       `json:"project_id"`
	Role      project.Role `json:"role"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// PathFor returns the join path for token.
func PathFor(token string) string {
	return JoinPathPrefix + token
}

// ParseLink extracts the token from a join link. It accepts a full URL, a
// path, or a bare token.
func ParseLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		link = u.Path
	}
	token := link
	if i := strings.LastIndex(link, JoinPathPrefix); i >= 0 {
		token = link[i+len(JoinPathPrefix):]
	}
	token = strings.Trim(token, "/")
	if err := uuid.Validate(token); err != nil {
		return "", ErrInviteInvalid
	}
	return token, nil
}
