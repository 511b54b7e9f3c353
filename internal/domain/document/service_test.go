package document_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/repository"
	"github.com/rpggio/marginalia/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type repos struct {
	projects    *mocks.ProjectRepository
	files       *mocks.FileRepository
	annotations *mocks.AnnotationRepository
	replies     *mocks.ReplyRepository
}

func newRepos() repos {
	return repos{
		projects:    &mocks.ProjectRepository{},
		files:       &mocks.FileRepository{},
		annotations: &mocks.AnnotationRepository{},
		replies:     &mocks.ReplyRepository{},
	}
}

func (r repos) service() *document.Service {
	return document.NewService(r.projects, r.files, r.annotations, r.replies, nil)
}

func TestSave_DeletesOrphansAfterUpserts(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	var upserts atomic.Int32
	var readEarly atomic.Bool
	countUpsert := func(mock.Arguments) { upserts.Add(1) }
	requireUpsertsDone := func(mock.Arguments) {
		if upserts.Load() != 4 {
			readEarly.Store(true)
		}
	}

	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).Run(countUpsert).Return(nil)
	r.files.On("Upsert", ctx, mock.Anything).Run(countUpsert).Return(nil)
	r.annotations.On("Upsert", ctx, mock.Anything).Run(countUpsert).Return(nil)
	r.replies.On("Upsert", ctx, mock.Anything).Run(countUpsert).Return(nil)

	r.files.On("ListIDs", ctx, "p1").Run(requireUpsertsDone).Return([]string{"f1", "f2", "f-old"}, nil)
	r.annotations.On("ListIDs", ctx, "p1").Run(requireUpsertsDone).Return([]string{"a1", "a2", "a-old"}, nil)
	r.replies.On("ListIDs", ctx, "p1").Run(requireUpsertsDone).Return([]string{"r1"}, nil)

	r.files.On("DeleteByIDs", ctx, []string{"f-old"}).Return(nil)
	r.annotations.On("DeleteByIDs", ctx, []string{"a-old"}).Return(nil)

	report, err := r.service().Save(ctx, "alice", "p1", sampleSnapshot())
	require.NoError(t, err)
	require.False(t, readEarly.Load(), "id sets read before all writes finished")
	require.False(t, report.Partial())
	require.Equal(t, 2, report.FilesWritten)
	require.Equal(t, 2, report.AnnotationsWritten)
	require.Equal(t, 1, report.RepliesWritten)
	require.Equal(t, 1, report.FilesDeleted)
	require.Equal(t, 1, report.AnnotationsDeleted)
	require.Zero(t, report.RepliesDeleted)

	r.files.AssertExpectations(t)
	r.annotations.AssertExpectations(t)
	r.replies.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything)
}

func TestSave_RowsCarryProjectAndBlobIsStamped(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	var blob json.RawMessage
	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { blob = args.Get(3).(json.RawMessage) }).Return(nil)
	r.files.On("Upsert", ctx, mock.MatchedBy(func(files []document.CodeFile) bool {
		for _, f := range files {
			if f.ProjectID != "p1" || f.Content == "" || f.CreatedAt.IsZero() {
				return false
			}
		}
		return len(files) == 2
	})).Return(nil)
	r.annotations.On("Upsert", ctx, mock.MatchedBy(func(as []document.Annotation) bool {
		for _, a := range as {
			if a.ProjectID != "p1" || a.Replies != nil {
				return false
			}
		}
		return len(as) == 2
	})).Return(nil)
	r.replies.On("Upsert", ctx, mock.MatchedBy(func(rs []document.Reply) bool {
		return len(rs) == 1 && rs[0].AnnotationID == "a1" && rs[0].ProjectID == "p1"
	})).Return(nil)
	r.files.On("ListIDs", ctx, "p1").Return([]string{"f1", "f2"}, nil)
	r.annotations.On("ListIDs", ctx, "p1").Return([]string{"a1", "a2"}, nil)
	r.replies.On("ListIDs", ctx, "p1").Return([]string{"r1"}, nil)

	snap := sampleSnapshot()
	snap.Blob.Writer = "tab-7"
	_, err := r.service().Save(ctx, "alice", "p1", snap)
	require.NoError(t, err)

	decoded, err := document.DecodeBlob(blob)
	require.NoError(t, err)
	require.Equal(t, "tab-7", decoded.Writer)
	require.False(t, decoded.SavedAt.IsZero())
	require.JSONEq(t, `{"tabs":["f1"]}`, string(decoded.Data))
	r.files.AssertExpectations(t)
	r.annotations.AssertExpectations(t)
	r.replies.AssertExpectations(t)
}

func TestSave_SkipsUnloadedFilesWithoutDeletingThem(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	snap := sampleSnapshot()
	delete(snap.Contents, "f2")

	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).Return(nil)
	r.files.On("Upsert", ctx, mock.MatchedBy(func(files []document.CodeFile) bool {
		return len(files) == 1 && files[0].ID == "f1"
	})).Return(nil)
	r.annotations.On("Upsert", ctx, mock.Anything).Return(nil)
	r.replies.On("Upsert", ctx, mock.Anything).Return(nil)
	r.files.On("ListIDs", ctx, "p1").Return([]string{"f1", "f2"}, nil)
	r.annotations.On("ListIDs", ctx, "p1").Return([]string{"a1", "a2"}, nil)
	r.replies.On("ListIDs", ctx, "p1").Return([]string{"r1"}, nil)

	report, err := r.service().Save(ctx, "alice", "p1", snap)
	require.NoError(t, err)
	require.Equal(t, []string{"f2"}, report.SkippedFiles)
	require.Zero(t, report.FilesDeleted)
	r.files.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything)
}

func TestSave_DropsAnnotationsOfRemovedFiles(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	snap := sampleSnapshot()
	snap.Files = snap.Files[:1]
	delete(snap.Contents, "f2")

	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).Return(nil)
	r.files.On("Upsert", ctx, mock.Anything).Return(nil)
	r.annotations.On("Upsert", ctx, mock.MatchedBy(func(as []document.Annotation) bool {
		return len(as) == 1 && as[0].ID == "a1"
	})).Return(nil)
	r.replies.On("Upsert", ctx, mock.Anything).Return(nil)
	r.files.On("ListIDs", ctx, "p1").Return([]string{"f1", "f2"}, nil)
	r.annotations.On("ListIDs", ctx, "p1").Return([]string{"a1", "a2"}, nil)
	r.replies.On("ListIDs", ctx, "p1").Return([]string{"r1"}, nil)
	r.files.On("DeleteByIDs", ctx, []string{"f2"}).Return(nil)
	r.annotations.On("DeleteByIDs", ctx, []string{"a2"}).Return(nil)

	report, err := r.service().Save(ctx, "alice", "p1", snap)
	require.NoError(t, err)
	require.Equal(t, []string{"a2"}, report.DroppedAnnotations)
	require.Equal(t, 1, report.FilesDeleted)
	require.Equal(t, 1, report.AnnotationsDeleted)
}

func TestSave_PartialFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	r := newRepos()
	boom := errors.New("connection reset")

	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).Return(nil)
	r.files.On("Upsert", ctx, mock.Anything).Return(nil)
	r.annotations.On("Upsert", ctx, mock.Anything).Return(boom)
	r.replies.On("Upsert", ctx, mock.Anything).Return(nil)
	r.files.On("ListIDs", ctx, "p1").Return([]string{"f1", "f2"}, nil)
	r.annotations.On("ListIDs", ctx, "p1").Return(nil, boom)
	r.replies.On("ListIDs", ctx, "p1").Return([]string{"r1"}, nil)

	report, err := r.service().Save(ctx, "alice", "p1", sampleSnapshot())
	require.NoError(t, err)
	require.True(t, report.Partial())
	require.Len(t, report.Failures, 2)
	require.ErrorIs(t, report.Err(), boom)
	r.annotations.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything)
}

func TestSave_ForeignFileIsReportedAndItsAnnotationsCleared(t *testing.T) {
	ctx := context.Background()
	r := newRepos()
	foreign := &repository.ForeignRowsError{Table: "code_files", IDs: []string{"f2"}}

	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).Return(nil)
	r.files.On("Upsert", ctx, mock.Anything).Return(foreign)
	r.annotations.On("Upsert", ctx, mock.Anything).Return(nil)
	r.replies.On("Upsert", ctx, mock.Anything).Return(nil)
	r.files.On("ListIDs", ctx, "p1").Return([]string{"f1"}, nil)
	r.annotations.On("ListIDs", ctx, "p1").Return([]string{"a1", "a2"}, nil)
	r.replies.On("ListIDs", ctx, "p1").Return([]string{"r1"}, nil)
	r.annotations.On("DeleteByIDs", ctx, []string{"a2"}).Return(nil)

	report, err := r.service().Save(ctx, "alice", "p1", sampleSnapshot())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	require.Equal(t, document.CollectionFiles, report.Failures[0].Collection)
	require.ErrorIs(t, report.Err(), repository.ErrForeignRow)
	require.Equal(t, 1, report.FilesWritten)
	require.Equal(t, 1, report.AnnotationsDeleted)
	r.files.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything)
	r.replies.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything)
	r.annotations.AssertExpectations(t)
}

func TestSave_ProjectUpdateFailureFailsSave(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	r.projects.On("UpdateMeta", ctx, "mallory", "p1", mock.Anything, mock.Anything).Return(repository.ErrNoRowsAffected)
	r.files.On("Upsert", ctx, mock.Anything).Return(nil)
	r.annotations.On("Upsert", ctx, mock.Anything).Return(nil)
	r.replies.On("Upsert", ctx, mock.Anything).Return(nil)

	_, err := r.service().Save(ctx, "mallory", "p1", sampleSnapshot())
	require.ErrorIs(t, err, document.ErrProjectNotWritable)
	r.files.AssertNotCalled(t, "ListIDs", mock.Anything, mock.Anything)
}

func TestSave_SessionExpiredPassesThrough(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	r.projects.On("UpdateMeta", ctx, "alice", "p1", mock.Anything, mock.Anything).Return(repository.ErrSessionExpired)
	r.files.On("Upsert", ctx, mock.Anything).Return(repository.ErrSessionExpired)
	r.annotations.On("Upsert", ctx, mock.Anything).Return(repository.ErrSessionExpired)
	r.replies.On("Upsert", ctx, mock.Anything).Return(repository.ErrSessionExpired)

	_, err := r.service().Save(ctx, "alice", "p1", sampleSnapshot())
	require.ErrorIs(t, err, repository.ErrSessionExpired)
}

func TestSave_InvalidSnapshotTouchesNothing(t *testing.T) {
	ctx := context.Background()
	r := newRepos()

	snap := sampleSnapshot()
	snap.Annotations[0].Category = "rant"
	_, err := r.service().Save(ctx, "alice", "p1", snap)
	require.ErrorIs(t, err, document.ErrInvalidSnapshot)

	_, err = r.service().Save(ctx, "alice", "p2", sampleSnapshot())
	require.ErrorIs(t, err, document.ErrInvalidSnapshot)

	_, err = r.service().Save(ctx, "alice", "p1", nil)
	require.ErrorIs(t, err, document.ErrInvalidSnapshot)
	r.projects.AssertNotCalled(t, "UpdateMeta", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLoad_AssemblesOrderedSnapshot(t *testing.T) {
	ctx := context.Background()
	r := newRepos()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	blob, err := document.EncodeBlob(document.SessionBlob{Data: json.RawMessage(`{"tabs":[]}`)})
	require.NoError(t, err)

	r.projects.On("Get", ctx, "bob", "p1").Return(&project.Project{ID: "p1", Name: "Parser review", Mode: "review", Blob: blob}, nil)
	r.files.On("ListByProject", mock.Anything, "p1").Return([]document.CodeFile{
		{ID: "f2", ProjectID: "p1", Filename: "b.go", Content: "b", DisplayOrder: 1},
		{ID: "f1", ProjectID: "p1", Filename: "a.go", Content: "a", DisplayOrder: 0},
	}, nil)
	r.annotations.On("ListByProject", mock.Anything, "p1").Return([]document.Annotation{
		{ID: "a2", FileID: "f1", Line: 9, Category: document.CategoryNote},
		{ID: "a1", FileID: "f1", Line: 2, Category: document.CategoryIssue},
	}, nil)
	r.replies.On("ListByProject", mock.Anything, "p1").Return([]document.Reply{
		{ID: "r2", AnnotationID: "a1", Body: "second", CreatedAt: t0.Add(time.Minute)},
		{ID: "r1", AnnotationID: "a1", Body: "first", CreatedAt: t0},
		{ID: "r9", AnnotationID: "gone", Body: "orphan", CreatedAt: t0},
	}, nil)

	snap, err := r.service().Load(ctx, "bob", "p1")
	require.NoError(t, err)
	require.Equal(t, []string{"f1", "f2"}, snap.FileIDs())
	require.Empty(t, snap.Files[0].Content)
	require.Equal(t, "a", snap.Contents["f1"])
	require.Equal(t, "a1", snap.Annotations[0].ID)
	require.Len(t, snap.Annotations[0].Replies, 2)
	require.Equal(t, "r1", snap.Annotations[0].Replies[0].ID)
	require.Empty(t, snap.Annotations[1].Replies)
	require.JSONEq(t, `{"tabs":[]}`, string(snap.Blob.Data))
}

func TestLoad_NotFound(t *testing.T) {
	ctx := context.Background()
	r := newRepos()
	r.projects.On("Get", ctx, "eve", "p1").Return(nil, repository.ErrNotFound)

	_, err := r.service().Load(ctx, "eve", "p1")
	require.ErrorIs(t, err, document.ErrProjectNotFound)
}
