package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rpggio/marginalia/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Service loads project documents and reconciles snapshots into the store.
type Service struct {
	projects    ProjectRepository
	files       FileRepository
	annotations AnnotationRepository
	replies     ReplyRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new document service.
func NewService(projects ProjectRepository, files FileRepository, annotations AnnotationRepository, replies ReplyRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		projects:    projects,
		files:       files,
		annotations: annotations,
		replies:     replies,
		logger:      logger,
		now:         time.Now,
	}
}

// rows is the flattened store image of a snapshot.
type rows struct {
	files       []CodeFile
	annotations []Annotation
	replies     []Reply

	keepFiles       map[string]struct{}
	keepAnnotations map[string]struct{}
	keepReplies     map[string]struct{}

	skipped []string
	dropped []string
}

func buildRows(projectID string, snap *Snapshot, now time.Time) rows {
	r := rows{
		keepFiles:       make(map[string]struct{}, len(snap.Files)),
		keepAnnotations: make(map[string]struct{}, len(snap.Annotations)),
		keepReplies:     make(map[string]struct{}),
	}

	for _, f := range snap.Files {
		r.keepFiles[f.ID] = struct{}{}
		content, ok := snap.Contents[f.ID]
		if !ok {
			r.skipped = append(r.skipped, f.ID)
			continue
		}
		f.ProjectID = projectID
		f.Content = content
		f.CreatedAt, f.UpdatedAt = stamp(f.CreatedAt, f.UpdatedAt, now)
		r.files = append(r.files, f)
	}

	for _, a := range snap.Annotations {
		if _, ok := r.keepFiles[a.FileID]; !ok {
			r.dropped = append(r.dropped, a.ID)
			continue
		}
		r.keepAnnotations[a.ID] = struct{}{}
		for _, reply := range a.Replies {
			reply.AnnotationID = a.ID
			reply.ProjectID = projectID
			if reply.CreatedAt.IsZero() {
				reply.CreatedAt = now
			}
			r.keepReplies[reply.ID] = struct{}{}
			r.replies = append(r.replies, reply)
		}
		a.ProjectID = projectID
		a.Replies = nil
		a.CreatedAt, a.UpdatedAt = stamp(a.CreatedAt, a.UpdatedAt, now)
		r.annotations = append(r.annotations, a)
	}
	return r
}

// release drops ids owned by another project from the keep sets, together
// with the annotations and replies that hang off them.
func (r *rows) release(files, annotations []string) {
	if len(files) == 0 && len(annotations) == 0 {
		return
	}
	lostFiles := make(map[string]struct{}, len(files))
	for _, id := range files {
		lostFiles[id] = struct{}{}
		delete(r.keepFiles, id)
	}
	lostAnnotations := make(map[string]struct{}, len(annotations))
	for _, id := range annotations {
		lostAnnotations[id] = struct{}{}
	}
	for _, a := range r.annotations {
		if _, ok := lostFiles[a.FileID]; ok {
			lostAnnotations[a.ID] = struct{}{}
		}
	}
	for id := range lostAnnotations {
		delete(r.keepAnnotations, id)
	}
	for _, reply := range r.replies {
		if _, ok := lostAnnotations[reply.AnnotationID]; ok {
			delete(r.keepReplies, reply.ID)
		}
	}
}

func stamp(created, updated, now time.Time) (time.Time, time.Time) {
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return created, updated
}

// Save reconciles snap into the store as userID.
//
// Upserts and the project metadata write run concurrently. Only after all of
// them finish are the store's id sets read back and orphans deleted, so a
// row written by this cycle is never mistaken for an orphan. The save
// succeeds iff the project metadata write succeeds; every other failure is
// recorded in the report.
func (s *Service) Save(ctx context.Context, userID, projectID string, snap *Snapshot) (*SaveReport, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if snap.ProjectID == "" {
		snap.ProjectID = projectID
	}
	if snap.ProjectID != projectID {
		return nil, fmt.Errorf("%w: snapshot belongs to project %s", ErrInvalidSnapshot, snap.ProjectID)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	blob := snap.Blob
	blob.SavedAt = now
	rawBlob, err := EncodeBlob(blob)
	if err != nil {
		return nil, err
	}

	r := buildRows(projectID, snap, now)
	report := &SaveReport{
		ProjectID:          projectID,
		SkippedFiles:       r.skipped,
		DroppedAnnotations: r.dropped,
	}
	for _, id := range r.skipped {
		s.logger.Warn("skipping file without loaded content", "project_id", projectID, "file_id", id)
	}

	var mu sync.Mutex
	fail := func(c Collection, op string, err error) {
		s.logger.Error("save step failed", "project_id", projectID, "collection", c, "op", op, "error", err)
		mu.Lock()
		report.Failures = append(report.Failures, Failure{Collection: c, Op: op, Err: err})
		mu.Unlock()
	}

	// Sub-entity failures must not cancel sibling writes, so the group has no
	// shared context and every goroutine returns nil.
	var writes errgroup.Group
	var metaErr error
	var foreignFiles, foreignAnnotations []string
	writes.Go(func() error {
		metaErr = s.projects.UpdateMeta(ctx, userID, projectID, rawBlob, now)
		return nil
	})
	if len(r.files) > 0 {
		writes.Go(func() error {
			err := s.files.Upsert(ctx, r.files)
			foreignFiles = repository.ForeignIDs(err)
			if err != nil {
				fail(CollectionFiles, "upsert", err)
				if foreignFiles == nil {
					return nil
				}
			}
			report.FilesWritten = len(r.files) - len(foreignFiles)
			return nil
		})
	}
	if len(r.annotations) > 0 {
		writes.Go(func() error {
			err := s.annotations.Upsert(ctx, r.annotations)
			foreignAnnotations = repository.ForeignIDs(err)
			if err != nil {
				fail(CollectionAnnotations, "upsert", err)
				if foreignAnnotations == nil {
					return nil
				}
			}
			report.AnnotationsWritten = len(r.annotations) - len(foreignAnnotations)
			return nil
		})
	}
	if len(r.replies) > 0 {
		writes.Go(func() error {
			err := s.replies.Upsert(ctx, r.replies)
			foreignReplies := repository.ForeignIDs(err)
			if err != nil {
				fail(CollectionReplies, "upsert", err)
				if foreignReplies == nil {
					return nil
				}
			}
			report.RepliesWritten = len(r.replies) - len(foreignReplies)
			return nil
		})
	}
	_ = writes.Wait()

	if metaErr != nil {
		s.logger.Error("project metadata write failed", "project_id", projectID, "error", metaErr)
		return report, mapWriteError(metaErr)
	}

	r.release(foreignFiles, foreignAnnotations)
	s.deleteOrphans(ctx, projectID, r, report, fail)

	s.logger.Info("project saved",
		"project_id", projectID,
		"files", report.FilesWritten,
		"annotations", report.AnnotationsWritten,
		"replies", report.RepliesWritten,
		"failures", len(report.Failures),
	)
	return report, nil
}

type collectionSync struct {
	collection Collection
	list       func(context.Context, string) ([]string, error)
	remove     func(context.Context, []string) error
	keep       map[string]struct{}
	deleted    *int
}

func (s *Service) deleteOrphans(ctx context.Context, projectID string, r rows, report *SaveReport, fail func(Collection, string, error)) {
	targets := []collectionSync{
		{CollectionFiles, s.files.ListIDs, s.files.DeleteByIDs, r.keepFiles, &report.FilesDeleted},
		{CollectionAnnotations, s.annotations.ListIDs, s.annotations.DeleteByIDs, r.keepAnnotations, &report.AnnotationsDeleted},
		{CollectionReplies, s.replies.ListIDs, s.replies.DeleteByIDs, r.keepReplies, &report.RepliesDeleted},
	}

	orphans := make([][]string, len(targets))
	var fetch errgroup.Group
	for i, t := range targets {
		fetch.Go(func() error {
			ids, err := t.list(ctx, projectID)
			if err != nil {
				fail(t.collection, "list", err)
				orphans[i] = nil
				return nil
			}
			orphans[i] = difference(ids, t.keep)
			return nil
		})
	}
	_ = fetch.Wait()

	var deletes errgroup.Group
	for i, t := range targets {
		ids := orphans[i]
		if len(ids) == 0 {
			continue
		}
		deletes.Go(func() error {
			if err := t.remove(ctx, ids); err != nil {
				fail(t.collection, "delete", err)
				return nil
			}
			*t.deleted = len(ids)
			s.logger.Debug("orphans deleted", "project_id", projectID, "collection", t.collection, "count", len(ids))
			return nil
		})
	}
	_ = deletes.Wait()
}

func difference(ids []string, keep map[string]struct{}) []string {
	var out []string
	for _, id := range ids {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSessionExpired):
		return err
	case errors.Is(err, repository.ErrNoRowsAffected), errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrProjectNotWritable, err)
	default:
		return fmt.Errorf("updating project: %w", err)
	}
}

// Load reads the project visible to userID and assembles its snapshot.
func (s *Service) Load(ctx context.Context, userID, projectID string) (*Snapshot, error) {
	proj, err := s.projects.Get(ctx, userID, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	blob, err := DecodeBlob(proj.Blob)
	if err != nil {
		return nil, err
	}

	var (
		files       []CodeFile
		annotations []Annotation
		replies     []Reply
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		files, err = s.files.ListByProject(gctx, projectID)
		if err != nil {
			return fmt.Errorf("listing files: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		annotations, err = s.annotations.ListByProject(gctx, projectID)
		if err != nil {
			return fmt.Errorf("listing annotations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		replies, err = s.replies.ListByProject(gctx, projectID)
		if err != nil {
			return fmt.Errorf("listing replies: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(proj.ID, proj.Name, proj.Mode, proj.UpdatedAt, blob, files, annotations, replies), nil
}

func assemble(projectID, name, mode string, updatedAt time.Time, blob SessionBlob, files []CodeFile, annotations []Annotation, replies []Reply) *Snapshot {
	snap := &Snapshot{
		ProjectID:   projectID,
		Name:        name,
		Mode:        mode,
		Files:       make([]CodeFile, 0, len(files)),
		Contents:    make(map[string]string, len(files)),
		Annotations: make([]Annotation, 0, len(annotations)),
		Blob:        blob,
		UpdatedAt:   updatedAt,
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].DisplayOrder != files[j].DisplayOrder {
			return files[i].DisplayOrder < files[j].DisplayOrder
		}
		return files[i].ID < files[j].ID
	})
	for _, f := range files {
		snap.Contents[f.ID] = f.Content
		f.Content = ""
		snap.Files = append(snap.Files, f)
	}

	byAnnotation := make(map[string][]Reply)
	for _, r := range replies {
		byAnnotation[r.AnnotationID] = append(byAnnotation[r.AnnotationID], r)
	}
	for _, a := range annotations {
		rs := byAnnotation[a.ID]
		sort.SliceStable(rs, func(i, j int) bool {
			if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
				return rs[i].CreatedAt.Before(rs[j].CreatedAt)
			}
			return rs[i].ID < rs[j].ID
		})
		a.Replies = rs
		snap.Annotations = append(snap.Annotations, a)
	}
	sort.SliceStable(snap.Annotations, func(i, j int) bool {
		ai, aj := snap.Annotations[i], snap.Annotations[j]
		if ai.FileID != aj.FileID {
			return ai.FileID < aj.FileID
		}
		if ai.Line != aj.Line {
			return ai.Line < aj.Line
		}
		return ai.ID < aj.ID
	})
	return snap
}
