package fork

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many member copies are written at once.
const DefaultConcurrency = 4

// Service gives each member of a project a private copy before the owner
// deletes it.
type Service struct {
	projects    ProjectRepository
	files       FileRepository
	annotations AnnotationRepository
	replies     ReplyRepository
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// NewService creates a new fork service. A non-positive concurrency uses
// DefaultConcurrency.
func NewService(projects ProjectRepository, files FileRepository, annotations AnnotationRepository, replies ReplyRepository, concurrency int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		projects:    projects,
		files:       files,
		annotations: annotations,
		replies:     replies,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// source is a full read of the project being forked.
type source struct {
	project     *project.Project
	files       []document.CodeFile
	annotations []document.Annotation
	replies     []document.Reply
}

func (s *Service) readSource(ctx context.Context, ownerID, projectID string) (*source, error) {
	proj, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("reading source project: %w", err)
	}

	src := &source{project: proj}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		src.files, err = s.files.ListByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		src.annotations, err = s.annotations.ListByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		src.replies, err = s.replies.ListByProject(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, repository.ErrSessionExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return src, nil
}

// ForkForMembers copies projectID into a new project for each member.
// Members are processed concurrently and independently; one member's
// failure never blocks another. An error is returned only when the source
// cannot be read.
func (s *Service) ForkForMembers(ctx context.Context, ownerID, projectID, ownerName string, members []project.Member) (*Outcome, error) {
	outcome := &Outcome{}
	if len(members) == 0 {
		return outcome, nil
	}

	src, err := s.readSource(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, m := range members {
		if m.UserID == "" || m.UserID == src.project.OwnerID {
			continue
		}
		g.Go(func() error {
			forked, err := s.copyFor(ctx, src, m.UserID, ownerName)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("fork failed", "project_id", projectID, "user_id", m.UserID, "error", err)
				outcome.Failed = append(outcome.Failed, Failure{UserID: m.UserID, Err: err})
				return nil
			}
			s.logger.Info("project forked", "project_id", projectID, "user_id", m.UserID, "fork_id", forked.ProjectID)
			outcome.Forked = append(outcome.Forked, *forked)
			return nil
		})
	}
	_ = g.Wait()
	return outcome, nil
}

// copyFor writes one isomorphic copy of src owned by userID. Every id is
// freshly allocated and every reference is rewritten through the remap.
func (s *Service) copyFor(ctx context.Context, src *source, userID, ownerName string) (*Forked, error) {
	now := s.now().UTC()
	proj := &project.Project{
		ID:        s.newID(),
		OwnerID:   userID,
		Name:      CopyName(src.project.Name, ownerName),
		Mode:      src.project.Mode,
		Blob:      copyBlob(src.project.Blob),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.projects.Create(ctx, proj); err != nil {
		return nil, fmt.Errorf("creating copy: %w", err)
	}

	fileIDs := make(map[string]string, len(src.files))
	files := make([]document.CodeFile, 0, len(src.files))
	for _, f := range src.files {
		fileIDs[f.ID] = s.newID()
		f.ID = fileIDs[f.ID]
		f.ProjectID = proj.ID
		files = append(files, f)
	}

	annotationIDs := make(map[string]string, len(src.annotations))
	annotations := make([]document.Annotation, 0, len(src.annotations))
	for _, a := range src.annotations {
		fileID, ok := fileIDs[a.FileID]
		if !ok {
			continue
		}
		annotationIDs[a.ID] = s.newID()
		a.ID = annotationIDs[a.ID]
		a.FileID = fileID
		a.ProjectID = proj.ID
		a.Replies = nil
		annotations = append(annotations, a)
	}

	replies := make([]document.Reply, 0, len(src.replies))
	for _, r := range src.replies {
		annotationID, ok := annotationIDs[r.AnnotationID]
		if !ok {
			continue
		}
		r.ID = s.newID()
		r.AnnotationID = annotationID
		r.ProjectID = proj.ID
		replies = append(replies, r)
	}

	if err := s.insertRows(ctx, files, annotations, replies); err != nil {
		s.discard(ctx, userID, proj.ID)
		return nil, err
	}
	return &Forked{UserID: userID, ProjectID: proj.ID, Name: proj.Name}, nil
}

func (s *Service) insertRows(ctx context.Context, files []document.CodeFile, annotations []document.Annotation, replies []document.Reply) error {
	if len(files) > 0 {
		if err := s.files.Insert(ctx, files); err != nil {
			return fmt.Errorf("copying files: %w", err)
		}
	}
	if len(annotations) > 0 {
		if err := s.annotations.Insert(ctx, annotations); err != nil {
			return fmt.Errorf("copying annotations: %w", err)
		}
	}
	if len(replies) > 0 {
		if err := s.replies.Insert(ctx, replies); err != nil {
			return fmt.Errorf("copying replies: %w", err)
		}
	}
	return nil
}

// discard removes a half-written copy. Failures are logged only; the caller
// sees the fork error.
func (s *Service) discard(ctx context.Context, userID, projectID string) {
	ctx = context.WithoutCancel(ctx)
	ids := []string{projectID}
	steps := []struct {
		name string
		run  func(context.Context, []string) error
	}{
		{"replies", s.replies.DeleteByProjects},
		{"annotations", s.annotations.DeleteByProjects},
		{"files", s.files.DeleteByProjects},
		{"project", func(ctx context.Context, ids []string) error { return s.projects.Delete(ctx, userID, ids) }},
	}
	for _, step := range steps {
		if err := step.run(ctx, ids); err != nil {
			s.logger.Error("discarding partial fork failed", "fork_id", projectID, "user_id", userID, "step", step.name, "error", err)
			return
		}
	}
	s.logger.Info("partial fork discarded", "fork_id", projectID, "user_id", userID)
}

// copyBlob carries the session payload over without the source's writer stamp.
func copyBlob(raw []byte) []byte {
	b, err := document.DecodeBlob(raw)
	if err != nil {
		return append([]byte(nil), raw...)
	}
	b.Writer = ""
	out, err := document.EncodeBlob(b)
	if err != nil {
		return append([]byte(nil), raw...)
	}
	return out
}
