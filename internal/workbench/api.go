package workbench

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/marginalia/internal/auth"
	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/fork"
	"github.com/rpggio/marginalia/internal/domain/invite"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/domain/trash"
	"github.com/rpggio/marginalia/internal/projectsync"
	"github.com/rpggio/marginalia/internal/sqlstore"
)

// Config tunes the API's sync and sharing behavior. Zero values use the
// package defaults of the underlying services.
type Config struct {
	PollInterval      time.Duration
	SuppressionWindow time.Duration
	SaveDebounce      time.Duration
	ForkConcurrency   int
	InviteTTL         time.Duration
	// Clock drives sync sessions. Nil uses the wall clock.
	Clock projectsync.Clock
}

// API is the caller-facing surface of the workbench. Every operation takes
// the caller's identity from the context and returns errors from this
// package's taxonomy.
type API struct {
	cfg       Config
	projects  *project.Service
	documents *document.Service
	forks     *fork.Service
	trash     *trash.Service
	invites   *invite.Service
	listings  listingCache
	logger    *slog.Logger
	now       func() time.Time
}

// New wires the domain services over db.
func New(db *sqlstore.DB, cfg Config, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	projects := sqlstore.NewProjectRepository(db)
	files := sqlstore.NewFileRepository(db)
	annotations := sqlstore.NewAnnotationRepository(db)
	replies := sqlstore.NewReplyRepository(db)
	members := sqlstore.NewMemberRepository(db)
	invites := sqlstore.NewInviteRepository(db)

	a := &API{cfg: cfg, logger: logger, now: time.Now}
	a.projects = project.NewService(projects, members, logger)
	a.documents = document.NewService(projects, files, annotations, replies, logger)
	a.forks = fork.NewService(projects, files, annotations, replies, cfg.ForkConcurrency, logger)
	a.trash = trash.NewService(projects, trash.Cascade{
		Replies:     replies,
		Annotations: annotations,
		Files:       files,
		Members:     members,
		Invites:     invites,
	}, logger)
	a.invites = invite.NewService(projects, members, invites, a, cfg.InviteTTL, logger)
	return a
}

func (a *API) caller(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return auth.Identity{}, ErrNotAuthenticated
	}
	if id.Expired(a.now()) {
		return auth.Identity{}, ErrSessionExpired
	}
	return id, nil
}

// CreateProject creates a project owned by the caller, seeded with a README.
func (a *API) CreateProject(ctx context.Context, name, mode string) (*project.Project, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	proj, err := a.projects.Create(ctx, id.UserID, project.CreateRequest{Name: name, Mode: mode})
	if err != nil {
		return nil, rewrite(err)
	}

	readme := document.NewReadmeSnapshot(proj.ID, proj.Name, uuid.NewString(), proj.CreatedAt)
	readme.Mode = proj.Mode
	readme.Blob.Writer = id.WriterID
	if _, err := a.documents.Save(ctx, id.UserID, proj.ID, readme); err != nil {
		return nil, rewrite(err)
	}

	a.RefreshListing(ctx, id.UserID)
	return proj, nil
}

// ListProjects returns the caller's active and library projects and caches
// the result.
func (a *API) ListProjects(ctx context.Context) (*Listing, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	l, err := a.loadListing(ctx, id.UserID)
	if err != nil {
		return nil, rewrite(err)
	}
	a.listings.put(id.UserID, l)
	return l, nil
}

// ListTrash returns the caller's trashed projects.
func (a *API) ListTrash(ctx context.Context) ([]project.Summary, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := a.trash.List(ctx, id.UserID)
	if err != nil {
		return nil, rewrite(err)
	}
	if list == nil {
		list = []project.Summary{}
	}
	return list, nil
}

// LoadProject returns the project document visible to the caller.
func (a *API) LoadProject(ctx context.Context, projectID string) (*document.Snapshot, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := a.documents.Load(ctx, id.UserID, projectID)
	if err != nil {
		return nil, rewrite(err)
	}
	return snap, nil
}

// SaveProject reconciles snap into the store.
func (a *API) SaveProject(ctx context.Context, projectID string, snap *document.Snapshot) (*document.SaveReport, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	// Child collections carry no access policy of their own, so viewers are
	// turned away before any row is written.
	role, err := a.projects.RoleOf(ctx, id.UserID, projectID)
	if err != nil {
		return nil, rewrite(err)
	}
	if !role.CanWrite() {
		return nil, ErrNotAuthorized
	}
	if snap != nil && snap.Blob.Writer == "" {
		snap.Blob.Writer = id.WriterID
	}
	renamed, err := a.applyName(ctx, id.UserID, projectID, role, snap)
	if err != nil {
		return nil, err
	}
	report, err := a.documents.Save(ctx, id.UserID, projectID, snap)
	if err != nil {
		return report, rewrite(err)
	}
	if renamed {
		a.RefreshListing(ctx, id.UserID)
	}
	return report, nil
}

// applyName carries a changed snapshot name into the project row. Only the
// owner may rename; for anyone else the stored name is put back on snap so
// the saved document matches what the store holds.
func (a *API) applyName(ctx context.Context, userID, projectID string, role project.Role, snap *document.Snapshot) (bool, error) {
	if snap == nil || snap.Name == "" {
		return false, nil
	}
	proj, err := a.projects.Get(ctx, userID, projectID)
	if err != nil {
		return false, rewrite(err)
	}
	name := strings.TrimSpace(snap.Name)
	if name == proj.Name {
		snap.Name = proj.Name
		return false, nil
	}
	if role != project.RoleOwner {
		a.logger.Info("ignoring rename by non-owner", "project_id", projectID, "user_id", userID)
		snap.Name = proj.Name
		return false, nil
	}
	if err := a.projects.Rename(ctx, userID, projectID, name); err != nil {
		return false, rewrite(err)
	}
	snap.Name = name
	return true, nil
}

// RenameProject changes the display name of a project the caller owns.
func (a *API) RenameProject(ctx context.Context, projectID, name string) (*project.Project, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.projects.Rename(ctx, id.UserID, projectID, name); err != nil {
		return nil, rewrite(err)
	}
	proj, err := a.projects.Get(ctx, id.UserID, projectID)
	if err != nil {
		return nil, rewrite(err)
	}
	a.RefreshListing(ctx, id.UserID)
	return proj, nil
}

// CreateInviteLink issues an invite to a project the caller owns.
func (a *API) CreateInviteLink(ctx context.Context, projectID string, role project.Role, ttl time.Duration) (*invite.Link, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	link, err := a.invites.CreateLink(ctx, id.UserID, projectID, role, ttl)
	if err != nil {
		return nil, rewrite(err)
	}
	return link, nil
}

// JoinProjectByInvite admits the caller through an invite token or link.
func (a *API) JoinProjectByInvite(ctx context.Context, tokenOrLink string) (*project.Project, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	token, err := invite.ParseLink(tokenOrLink)
	if err != nil {
		return nil, rewrite(err)
	}
	proj, err := a.invites.JoinByToken(ctx, token, id.UserID)
	if err != nil {
		return nil, rewrite(err)
	}
	return proj, nil
}

// DeleteProject gives every member a private copy, then moves the project to
// the caller's trash. Members whose copy failed are listed in the outcome;
// they do not block the delete.
func (a *API) DeleteProject(ctx context.Context, projectID string) (*fork.Outcome, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	proj, err := a.projects.Get(ctx, id.UserID, projectID)
	if err != nil {
		return nil, rewrite(err)
	}
	if proj.OwnerID != id.UserID {
		return nil, ErrNotAuthorized
	}

	members, err := a.projects.Members(ctx, projectID)
	if err != nil {
		return nil, rewrite(err)
	}
	outcome, err := a.forks.ForkForMembers(ctx, id.UserID, projectID, id.DisplayName(), members)
	if err != nil {
		return nil, rewrite(err)
	}
	if err := a.trash.SoftDelete(ctx, id.UserID, projectID); err != nil {
		return outcome, rewrite(err)
	}

	a.RefreshListing(ctx, id.UserID)
	for _, f := range outcome.Forked {
		a.RefreshListing(ctx, f.UserID)
	}
	return outcome, nil
}

// RestoreProject takes a project out of the caller's trash.
func (a *API) RestoreProject(ctx context.Context, projectID string) error {
	id, err := a.caller(ctx)
	if err != nil {
		return err
	}
	if err := a.trash.Restore(ctx, id.UserID, projectID); err != nil {
		return rewrite(err)
	}
	a.RefreshListing(ctx, id.UserID)
	return nil
}

// PermanentlyDeleteProject destroys one of the caller's projects.
func (a *API) PermanentlyDeleteProject(ctx context.Context, projectID string) error {
	id, err := a.caller(ctx)
	if err != nil {
		return err
	}
	if err := a.trash.PermanentDelete(ctx, id.UserID, projectID); err != nil {
		return rewrite(err)
	}
	a.RefreshListing(ctx, id.UserID)
	return nil
}

// EmptyTrash destroys every project in the caller's trash.
func (a *API) EmptyTrash(ctx context.Context) (*trash.EmptyResult, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	res, err := a.trash.EmptyTrash(ctx, id.UserID)
	if err != nil {
		return nil, rewrite(err)
	}
	return res, nil
}

// StartProjectSync opens a sync session on projectID for the caller. The
// session polls with the caller's identity until stopped; onRemoteUpdate
// fires when a remote change becomes pending.
func (a *API) StartProjectSync(ctx context.Context, projectID string, onRemoteUpdate func(*document.Snapshot)) (*projectsync.Session, error) {
	id, err := a.caller(ctx)
	if err != nil {
		return nil, err
	}
	writer := id.WriterID
	if writer == "" {
		writer = uuid.NewString()
		ctx = auth.WithWriter(ctx, writer)
	}

	load := func(ctx context.Context) (*document.Snapshot, error) {
		return a.LoadProject(ctx, projectID)
	}
	save := func(ctx context.Context, snap *document.Snapshot) (*document.SaveReport, error) {
		return a.SaveProject(ctx, projectID, snap)
	}
	session := projectsync.NewSession(projectID, load, save, projectsync.Options{
		PollInterval:      a.cfg.PollInterval,
		SuppressionWindow: a.cfg.SuppressionWindow,
		SaveDebounce:      a.cfg.SaveDebounce,
		WriterID:          writer,
		Clock:             a.cfg.Clock,
		Logger:            a.logger,
		OnRemoteUpdate:    onRemoteUpdate,
	})
	if _, err := session.Start(ctx); err != nil {
		return nil, rewrite(err)
	}
	return session, nil
}
