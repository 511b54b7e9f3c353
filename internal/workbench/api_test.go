package workbench_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/marginalia/internal/auth"
	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/fork"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/sqlstore"
	"github.com/rpggio/marginalia/internal/workbench"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *workbench.API {
	t.Helper()
	db, err := sqlstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return workbench.New(db, workbench.Config{PollInterval: time.Hour}, nil)
}

func as(userID, name string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{
		UserID:   userID,
		Name:     name,
		WriterID: "writer-" + userID,
	})
}

func addAnnotatedFile(snap *document.Snapshot) {
	snap.Files = append(snap.Files, document.CodeFile{
		ID:           "main-go",
		Filename:     "main.go",
		Language:     "go",
		DisplayOrder: 1,
	})
	snap.Contents["main-go"] = "package main\n\nfunc main() {}\n"
	snap.Annotations = append(snap.Annotations, document.Annotation{
		ID:       "ann-1",
		FileID:   "main-go",
		AuthorID: "alice",
		Line:     3,
		LineText: "func main() {}",
		Category: document.CategoryQuestion,
		Body:     "Empty on purpose?",
		Replies: []document.Reply{{
			ID:       "reply-1",
			AuthorID: "alice",
			Body:     "Yes, placeholder.",
		}},
	})
}

func TestCreateProject_SeedsReadme(t *testing.T) {
	api := newTestAPI(t)
	ctx := as("alice", "Alice")

	proj, err := api.CreateProject(ctx, "Demo", "")
	require.NoError(t, err)
	require.Equal(t, project.DefaultMode, proj.Mode)

	snap, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	require.Len(t, snap.Files, 1)
	require.Equal(t, "README.md", snap.Files[0].Filename)
	require.Contains(t, snap.Contents[snap.Files[0].ID], "# Demo")

	listing, ok := api.CachedListing("alice")
	require.True(t, ok)
	require.Len(t, listing.Projects, 1)
	require.Equal(t, proj.ID, listing.Projects[0].ID)
}

func TestCreateProject_LibraryNamespace(t *testing.T) {
	api := newTestAPI(t)
	ctx := as("alice", "Alice")

	_, err := api.CreateProject(ctx, "Demo", "")
	require.NoError(t, err)
	_, err = api.CreateProject(ctx, project.LibraryPrefix+"Patterns", "")
	require.NoError(t, err)

	listing, err := api.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, listing.Projects, 1)
	require.Len(t, listing.Library, 1)
	require.Equal(t, "Demo", listing.Projects[0].Name)
}

func TestSaveProject_RoundTripIsIdempotent(t *testing.T) {
	api := newTestAPI(t)
	ctx := as("alice", "Alice")
	proj, err := api.CreateProject(ctx, "Demo", "")
	require.NoError(t, err)

	snap, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	addAnnotatedFile(snap)
	_, err = api.SaveProject(ctx, proj.ID, snap)
	require.NoError(t, err)

	first, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)

	report, err := api.SaveProject(ctx, proj.ID, first.Clone())
	require.NoError(t, err)
	require.False(t, report.Partial())
	require.Zero(t, report.FilesDeleted)
	require.Zero(t, report.AnnotationsDeleted)
	require.Zero(t, report.RepliesDeleted)

	second, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	require.Equal(t, first.Fingerprint(), second.Fingerprint())
	require.Equal(t, first.Annotations, second.Annotations)
}

func TestSaveProject_RemovesOrphans(t *testing.T) {
	api := newTestAPI(t)
	ctx := as("alice", "Alice")
	proj, err := api.CreateProject(ctx, "Demo", "")
	require.NoError(t, err)

	snap, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	addAnnotatedFile(snap)
	_, err = api.SaveProject(ctx, proj.ID, snap)
	require.NoError(t, err)

	snap, err = api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	snap.RemoveFile("main-go")
	report, err := api.SaveProject(ctx, proj.ID, snap)
	require.NoError(t, err)
	require.Equal(t, 1, report.FilesDeleted)
	require.Equal(t, 1, report.AnnotationsDeleted)
	require.Equal(t, 1, report.RepliesDeleted)

	after, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	require.Len(t, after.Files, 1)
	require.Equal(t, "README.md", after.Files[0].Filename)
	require.Empty(t, after.Annotations)
}

func TestSaveProject_CannotClaimAnotherProjectsFile(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")

	a, err := api.CreateProject(alice, "A", "")
	require.NoError(t, err)
	b, err := api.CreateProject(alice, "B", "")
	require.NoError(t, err)
	for id, role := range map[string]project.Role{a.ID: project.RoleEditor, b.ID: project.RoleViewer} {
		link, err := api.CreateInviteLink(alice, id, role, 0)
		require.NoError(t, err)
		_, err = api.JoinProjectByInvite(bob, link.Token)
		require.NoError(t, err)
	}

	other, err := api.LoadProject(bob, b.ID)
	require.NoError(t, err)
	readme := other.Files[0]
	original := other.Contents[readme.ID]

	snap, err := api.LoadProject(bob, a.ID)
	require.NoError(t, err)
	readme.DisplayOrder = 5
	snap.Files = append(snap.Files, readme)
	snap.Contents[readme.ID] = "defaced"
	snap.Annotations = append(snap.Annotations, document.Annotation{
		ID: "ann-x", FileID: readme.ID, AuthorID: "bob", Line: 1, Category: document.CategoryNote, Body: "mine now",
	})

	report, err := api.SaveProject(bob, a.ID, snap)
	require.NoError(t, err)
	require.True(t, report.Partial())
	require.Equal(t, document.CollectionFiles, report.Failures[0].Collection)
	require.Equal(t, 1, report.AnnotationsDeleted)

	// A second save of A must not treat B's file as an orphan of A.
	_, err = api.SaveProject(bob, a.ID, snap)
	require.NoError(t, err)

	after, err := api.LoadProject(alice, b.ID)
	require.NoError(t, err)
	require.Len(t, after.Files, 1)
	require.Equal(t, original, after.Contents[readme.ID])

	mine, err := api.LoadProject(alice, a.ID)
	require.NoError(t, err)
	require.Len(t, mine.Files, 1)
	require.Empty(t, mine.Annotations)
}

func TestRenameProject_OwnerOnly(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)

	renamed, err := api.RenameProject(alice, proj.ID, "  Parser review ")
	require.NoError(t, err)
	require.Equal(t, "Parser review", renamed.Name)

	listing, ok := api.CachedListing("alice")
	require.True(t, ok)
	require.Equal(t, "Parser review", listing.Projects[0].Name)

	_, err = api.RenameProject(alice, proj.ID, "   ")
	require.ErrorIs(t, err, workbench.ErrInvalidInput)

	_, err = api.RenameProject(bob, proj.ID, "Mine")
	require.ErrorIs(t, err, workbench.ErrNotAuthorized)
}

func TestSaveProject_AppliesOwnersNameChange(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)

	snap, err := api.LoadProject(alice, proj.ID)
	require.NoError(t, err)
	snap.Name = "Renamed"
	_, err = api.SaveProject(alice, proj.ID, snap)
	require.NoError(t, err)

	loaded, err := api.LoadProject(alice, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", loaded.Name)
	require.Equal(t, snap.Fingerprint(), loaded.Fingerprint())

	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)
	_, err = api.JoinProjectByInvite(bob, link.Path)
	require.NoError(t, err)

	edit, err := api.LoadProject(bob, proj.ID)
	require.NoError(t, err)
	edit.Name = "Bob's now"
	_, err = api.SaveProject(bob, proj.ID, edit)
	require.NoError(t, err)
	require.Equal(t, "Renamed", edit.Name)

	loaded, err = api.LoadProject(alice, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", loaded.Name)
	require.Equal(t, edit.Fingerprint(), loaded.Fingerprint())
}

func TestSaveProject_StampsCallerWriter(t *testing.T) {
	api := newTestAPI(t)
	ctx := as("alice", "Alice")
	proj, err := api.CreateProject(ctx, "Demo", "")
	require.NoError(t, err)

	snap, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	snap.Blob.Writer = ""
	_, err = api.SaveProject(ctx, proj.ID, snap)
	require.NoError(t, err)

	loaded, err := api.LoadProject(ctx, proj.ID)
	require.NoError(t, err)
	require.Equal(t, "writer-alice", loaded.Blob.Writer)
}

func TestSaveProject_ViewerCannotWrite(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)

	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleViewer, 0)
	require.NoError(t, err)
	_, err = api.JoinProjectByInvite(bob, link.Path)
	require.NoError(t, err)

	snap, err := api.LoadProject(bob, proj.ID)
	require.NoError(t, err)
	_, err = api.SaveProject(bob, proj.ID, snap)
	require.ErrorIs(t, err, workbench.ErrNotAuthorized)
}

func TestAPI_RequiresIdentity(t *testing.T) {
	api := newTestAPI(t)

	_, err := api.ListProjects(context.Background())
	require.ErrorIs(t, err, workbench.ErrNotAuthenticated)

	expired := auth.WithIdentity(context.Background(), auth.Identity{
		UserID:    "alice",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	_, err = api.CreateProject(expired, "Demo", "")
	require.ErrorIs(t, err, workbench.ErrSessionExpired)
	require.Equal(t, "your session has expired, sign in again to continue", err.Error())
}

func TestLoadProject_HiddenFromStrangers(t *testing.T) {
	api := newTestAPI(t)
	proj, err := api.CreateProject(as("alice", "Alice"), "Demo", "")
	require.NoError(t, err)

	_, err = api.LoadProject(as("mallory", "Mallory"), proj.ID)
	require.ErrorIs(t, err, workbench.ErrProjectNotFound)
}

func TestJoinProjectByInvite(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)

	link, err := api.CreateInviteLink(alice, proj.ID, "", 0)
	require.NoError(t, err)
	require.Equal(t, project.RoleEditor, link.Role)

	joined, err := api.JoinProjectByInvite(bob, "https://marginalia.example"+link.Path)
	require.NoError(t, err)
	require.Equal(t, proj.ID, joined.ID)

	listing, ok := api.CachedListing("bob")
	require.True(t, ok)
	require.Len(t, listing.Projects, 1)
	require.Equal(t, project.RoleEditor, listing.Projects[0].Role)

	_, err = api.JoinProjectByInvite(bob, link.Token)
	require.NoError(t, err)

	_, err = api.JoinProjectByInvite(bob, "not-a-token")
	require.ErrorIs(t, err, workbench.ErrInviteInvalid)

	_, err = api.CreateInviteLink(bob, proj.ID, project.RoleViewer, 0)
	require.ErrorIs(t, err, workbench.ErrNotAuthorized)
}

func TestJoinProjectByInvite_TrashedProjectGrantsNothing(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)
	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)
	_, err = api.DeleteProject(alice, proj.ID)
	require.NoError(t, err)

	_, err = api.JoinProjectByInvite(bob, link.Token)
	require.ErrorIs(t, err, workbench.ErrProjectNotFound)

	require.NoError(t, api.RestoreProject(alice, proj.ID))
	_, err = api.LoadProject(bob, proj.ID)
	require.ErrorIs(t, err, workbench.ErrProjectNotFound)

	listing, err := api.ListProjects(bob)
	require.NoError(t, err)
	require.Empty(t, listing.Projects)
}

func TestJoinProjectByInvite_ConcurrentJoinsAreIdempotent(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)
	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)

	bob := as("bob", "Bob")
	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = api.JoinProjectByInvite(bob, link.Token)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// The owner deleting the project forks exactly one copy for bob.
	outcome, err := api.DeleteProject(alice, proj.ID)
	require.NoError(t, err)
	require.Len(t, outcome.Forked, 1)
}

func TestJoinProjectByInvite_OwnerIsNotAddedAsMember(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)
	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)

	_, err = api.JoinProjectByInvite(alice, link.Token)
	require.NoError(t, err)

	outcome, err := api.DeleteProject(alice, proj.ID)
	require.NoError(t, err)
	require.Empty(t, outcome.Forked)
}

func TestDeleteProject_ForksForMembers(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)

	snap, err := api.LoadProject(alice, proj.ID)
	require.NoError(t, err)
	addAnnotatedFile(snap)
	_, err = api.SaveProject(alice, proj.ID, snap)
	require.NoError(t, err)
	source, err := api.LoadProject(alice, proj.ID)
	require.NoError(t, err)

	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)
	_, err = api.JoinProjectByInvite(bob, link.Token)
	require.NoError(t, err)

	outcome, err := api.DeleteProject(alice, proj.ID)
	require.NoError(t, err)
	require.True(t, outcome.Complete())
	require.Len(t, outcome.Forked, 1)
	forked := outcome.Forked[0]
	require.Equal(t, "bob", forked.UserID)
	require.Equal(t, fork.CopyName("Demo", "Alice"), forked.Name)
	require.NotEqual(t, proj.ID, forked.ProjectID)

	copySnap, err := api.LoadProject(bob, forked.ProjectID)
	require.NoError(t, err)
	require.Len(t, copySnap.Files, len(source.Files))
	require.Len(t, copySnap.Annotations, len(source.Annotations))

	byName := make(map[string]string)
	for _, f := range copySnap.Files {
		require.NotEqual(t, "main-go", f.ID)
		byName[f.Filename] = copySnap.Contents[f.ID]
	}
	for _, f := range source.Files {
		require.Equal(t, source.Contents[f.ID], byName[f.Filename])
	}

	copied := copySnap.Annotations[0]
	require.NotEqual(t, "ann-1", copied.ID)
	require.True(t, copySnap.HasFile(copied.FileID))
	require.Equal(t, "Empty on purpose?", copied.Body)
	require.Len(t, copied.Replies, 1)
	require.Equal(t, copied.ID, copied.Replies[0].AnnotationID)

	// The original is gone for bob and sits in alice's trash.
	_, err = api.LoadProject(bob, proj.ID)
	require.ErrorIs(t, err, workbench.ErrProjectNotFound)

	trashed, err := api.ListTrash(alice)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	require.Equal(t, proj.ID, trashed[0].ID)

	listing, ok := api.CachedListing("bob")
	require.True(t, ok)
	require.Len(t, listing.Projects, 1)
	require.Equal(t, forked.ProjectID, listing.Projects[0].ID)
}

func TestDeleteProject_OnlyOwner(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)
	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)
	_, err = api.JoinProjectByInvite(bob, link.Token)
	require.NoError(t, err)

	_, err = api.DeleteProject(bob, proj.ID)
	require.ErrorIs(t, err, workbench.ErrNotAuthorized)

	_, err = api.LoadProject(alice, proj.ID)
	require.NoError(t, err)
}

func TestTrashLifecycle(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	keep, err := api.CreateProject(alice, "Keep", "")
	require.NoError(t, err)
	drop, err := api.CreateProject(alice, "Drop", "")
	require.NoError(t, err)

	_, err = api.DeleteProject(alice, keep.ID)
	require.NoError(t, err)
	require.NoError(t, api.RestoreProject(alice, keep.ID))

	listing, err := api.ListProjects(alice)
	require.NoError(t, err)
	require.Len(t, listing.Projects, 2)

	_, err = api.DeleteProject(alice, keep.ID)
	require.NoError(t, err)
	_, err = api.DeleteProject(alice, drop.ID)
	require.NoError(t, err)

	require.NoError(t, api.PermanentlyDeleteProject(alice, keep.ID))
	_, err = api.LoadProject(alice, keep.ID)
	require.ErrorIs(t, err, workbench.ErrProjectNotFound)

	res, err := api.EmptyTrash(alice)
	require.NoError(t, err)
	require.Equal(t, []string{drop.ID}, res.Deleted)

	trashed, err := api.ListTrash(alice)
	require.NoError(t, err)
	require.Empty(t, trashed)

	err = api.PermanentlyDeleteProject(alice, drop.ID)
	require.ErrorIs(t, err, workbench.ErrProjectNotFound)
}

func TestProjectSync_EchoSuppressedAndRemoteDetected(t *testing.T) {
	api := newTestAPI(t)
	alice := as("alice", "Alice")
	bob := as("bob", "Bob")
	proj, err := api.CreateProject(alice, "Demo", "")
	require.NoError(t, err)
	link, err := api.CreateInviteLink(alice, proj.ID, project.RoleEditor, 0)
	require.NoError(t, err)
	_, err = api.JoinProjectByInvite(bob, link.Token)
	require.NoError(t, err)

	var mu sync.Mutex
	var bobNotified []*document.Snapshot
	aliceSession, err := api.StartProjectSync(alice, proj.ID, func(*document.Snapshot) {
		t.Error("alice was notified of her own write")
	})
	require.NoError(t, err)
	defer aliceSession.Stop()
	bobSession, err := api.StartProjectSync(bob, proj.ID, func(s *document.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		bobNotified = append(bobNotified, s)
	})
	require.NoError(t, err)
	defer bobSession.Stop()

	snap, err := api.LoadProject(alice, proj.ID)
	require.NoError(t, err)
	addAnnotatedFile(snap)
	require.NoError(t, aliceSession.Edit(snap))
	_, err = aliceSession.Flush(alice)
	require.NoError(t, err)

	require.NoError(t, aliceSession.Monitor().PollNow(alice))
	require.False(t, aliceSession.Pending())

	require.NoError(t, bobSession.Monitor().PollNow(bob))
	require.NoError(t, bobSession.Monitor().PollNow(bob))
	require.True(t, bobSession.Pending())
	mu.Lock()
	require.Len(t, bobNotified, 1)
	mu.Unlock()

	remote, ok := bobSession.Reload()
	require.True(t, ok)
	require.Len(t, remote.Files, 2)
	require.False(t, bobSession.Pending())
}
