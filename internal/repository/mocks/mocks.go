package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/stretchr/testify/mock"
)

// ProjectRepository is a mock for the project persistence interfaces.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	args := m.Called(ctx, proj)
	return args.Error(0)
}

func (m *ProjectRepository) Get(ctx context.Context, userID, id string) (*project.Project, error) {
	args := m.Called(ctx, userID, id)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) ListActive(ctx context.Context, userID string) ([]project.Summary, error) {
	args := m.Called(ctx, userID)
	if list, ok := args.Get(0).([]project.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) ListTrashed(ctx context.Context, ownerID string) ([]project.Summary, error) {
	args := m.Called(ctx, ownerID)
	if list, ok := args.Get(0).([]project.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) TrashedIDs(ctx context.Context, ownerID string) ([]string, error) {
	args := m.Called(ctx, ownerID)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Rename(ctx context.Context, ownerID, id, name string, at time.Time) error {
	args := m.Called(ctx, ownerID, id, name, at)
	return args.Error(0)
}

func (m *ProjectRepository) UpdateMeta(ctx context.Context, userID, id string, blob json.RawMessage, at time.Time) error {
	args := m.Called(ctx, userID, id, blob, at)
	return args.Error(0)
}

func (m *ProjectRepository) SetDeletedAt(ctx context.Context, ownerID string, ids []string, at *time.Time) error {
	args := m.Called(ctx, ownerID, ids, at)
	return args.Error(0)
}

func (m *ProjectRepository) Delete(ctx context.Context, ownerID string, ids []string) error {
	args := m.Called(ctx, ownerID, ids)
	return args.Error(0)
}

// FileRepository is a mock for code file persistence.
type FileRepository struct {
	mock.Mock
}

func (m *FileRepository) Upsert(ctx context.Context, files []document.CodeFile) error {
	args := m.Called(ctx, files)
	return args.Error(0)
}

func (m *FileRepository) Insert(ctx context.Context, files []document.CodeFile) error {
	args := m.Called(ctx, files)
	return args.Error(0)
}

func (m *FileRepository) ListByProject(ctx context.Context, projectID string) ([]document.CodeFile, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]document.CodeFile); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FileRepository) ListIDs(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FileRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *FileRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	args := m.Called(ctx, projectIDs)
	return args.Error(0)
}

// AnnotationRepository is a mock for annotation persistence.
type AnnotationRepository struct {
	mock.Mock
}

func (m *AnnotationRepository) Upsert(ctx context.Context, annotations []document.Annotation) error {
	args := m.Called(ctx, annotations)
	return args.Error(0)
}

func (m *AnnotationRepository) Insert(ctx context.Context, annotations []document.Annotation) error {
	args := m.Called(ctx, annotations)
	return args.Error(0)
}

func (m *AnnotationRepository) ListByProject(ctx context.Context, projectID string) ([]document.Annotation, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]document.Annotation); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AnnotationRepository) ListIDs(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AnnotationRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *AnnotationRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	args := m.Called(ctx, projectIDs)
	return args.Error(0)
}

// ReplyRepository is a mock for reply persistence.
type ReplyRepository struct {
	mock.Mock
}

func (m *ReplyRepository) Upsert(ctx context.Context, replies []document.Reply) error {
	args := m.Called(ctx, replies)
	return args.Error(0)
}

func (m *ReplyRepository) Insert(ctx context.Context, replies []document.Reply) error {
	args := m.Called(ctx, replies)
	return args.Error(0)
}

func (m *ReplyRepository) ListByProject(ctx context.Context, projectID string) ([]document.Reply, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]document.Reply); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ReplyRepository) ListIDs(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ReplyRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *ReplyRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	args := m.Called(ctx, projectIDs)
	return args.Error(0)
}

// MemberRepository is a mock for membership persistence.
type MemberRepository struct {
	mock.Mock
}

func (m *MemberRepository) ListByProject(ctx context.Context, projectID string) ([]project.Member, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]project.Member); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MemberRepository) Exists(ctx context.Context, projectID, userID string) (bool, error) {
	args := m.Called(ctx, projectID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MemberRepository) Insert(ctx context.Context, member *project.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MemberRepository) Delete(ctx context.Context, projectID, userID string) error {
	args := m.Called(ctx, projectID, userID)
	return args.Error(0)
}

func (m *MemberRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	args := m.Called(ctx, projectIDs)
	return args.Error(0)
}

// InviteRepository is a mock for invite persistence.
type InviteRepository struct {
	mock.Mock
}

func (m *InviteRepository) Insert(ctx context.Context, inv *project.Invite) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *InviteRepository) GetValid(ctx context.Context, token string, now time.Time) (*project.Invite, error) {
	args := m.Called(ctx, token, now)
	if inv, ok := args.Get(0).(*project.Invite); ok {
		return inv, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *InviteRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	args := m.Called(ctx, projectIDs)
	return args.Error(0)
}
