package project

import (
	"encoding/json"
	"strings"
	"time"
)

// LibraryPrefix marks published/library projects in the reserved name namespace.
const LibraryPrefix = "[library] "

// DefaultMode is the mode tag given to projects created without one.
const DefaultMode = "review"

// Role is a member's permission level on a shared project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r can be granted to an explicit member.
func (r Role) Valid() bool {
	return r == RoleEditor || r == RoleViewer
}

// CanWrite reports whether role may change a project's document.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// Project is the parent record of a working document. Everything not held in
// the file/annotation/reply collections lives in Blob.
type Project struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Name      string          `json:"name"`
	Mode      string          `json:"mode"`
	Blob      json.RawMessage `json:"blob,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
}

// Trashed reports whether the project has been soft-deleted.
func (p *Project) Trashed() bool {
	return p.DeletedAt != nil
}

// IsLibrary reports whether the project lives in the library namespace.
func (p *Project) IsLibrary() bool {
	return IsLibraryName(p.Name)
}

// IsLibraryName reports whether name carries the library prefix.
func IsLibraryName(name string) bool {
	return strings.HasPrefix(name, LibraryPrefix)
}

// StripLibraryPrefix removes the library prefix from name, if present.
func StripLibraryPrefix(name string) string {
	return strings.TrimPrefix(name, LibraryPrefix)
}

// Summary is a lightweight representation for listings.
type Summary struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Name      string     `json:"name"`
	Mode      string     `json:"mode"`
	Role      Role       `json:"role"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Member is an explicit (non-owner) participant of a project.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite grants Role on ProjectID to whoever presents Token before ExpiresAt.
type Invite struct {
	Token     string    `json:"token"`
	ProjectID string    `json:"project_id"`
	Role      Role      `json:"role"`
	CreatedBy string    `json:"created_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
