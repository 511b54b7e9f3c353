package projectsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/stretchr/testify/require"
)

// store is a fake saver that also serves as the polled remote.
type store struct {
	remote
	saveMu sync.Mutex
	saved  []*document.Snapshot
	saveFn func(*document.Snapshot) error
}

func (s *store) save(_ context.Context, snap *document.Snapshot) (*document.SaveReport, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.saveFn != nil {
		if err := s.saveFn(snap); err != nil {
			return nil, err
		}
	}
	s.saved = append(s.saved, snap.Clone())
	s.set(snap.Clone())
	return &document.SaveReport{ProjectID: snap.ProjectID}, nil
}

func (s *store) saves() []*document.Snapshot {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return append([]*document.Snapshot(nil), s.saved...)
}

func newTestSession(t *testing.T, st *store, clock *fakeClock, n *notifications) *Session {
	t.Helper()
	s := NewSession("p1", st.fetch, st.save, Options{
		WriterID:       "tab-1",
		Clock:          clock,
		OnRemoteUpdate: n.record,
	})
	t.Cleanup(s.Stop)
	return s
}

func TestSession_StartLoadsBaseline(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	s := newTestSession(t, st, clock, &notifications{})

	snap, err := s.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, "p1", snap.ProjectID)

	clock.Advance(DefaultPollInterval)
	require.False(t, s.Pending())

	_, err = s.Start(context.Background())
	require.Error(t, err)
}

func TestSession_DebouncedSaveLastEditWins(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	s := newTestSession(t, st, clock, &notifications{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)
	start := clock.Now()

	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "draft 1")))
	clock.Advance(time.Second)
	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "draft 2")))
	clock.Advance(time.Second)
	require.Empty(t, st.saves(), "debounce restarted by second edit")
	require.True(t, s.Dirty())

	clock.Advance(DefaultSaveDebounce)
	saves := st.saves()
	require.Len(t, saves, 1)
	require.Equal(t, "draft 2", saves[0].Annotations[0].Body)
	require.Equal(t, "tab-1", saves[0].Blob.Writer)
	require.False(t, s.Dirty())
	require.Equal(t, start.Add(time.Second+DefaultSaveDebounce), s.LastLocalWrite())
}

func TestSession_OwnSaveIsNotARemoteChange(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	n := &notifications{}
	s := newTestSession(t, st, clock, n)
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "mine")))
	_, err = s.Flush(context.Background())
	require.NoError(t, err)

	clock.Advance(3 * DefaultPollInterval)
	require.False(t, s.Pending())
	require.Zero(t, n.count())
}

func TestSession_FlushWithoutDraft(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	s := newTestSession(t, st, clock, &notifications{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	report, err := s.Flush(context.Background())
	require.NoError(t, err)
	require.Nil(t, report)
}

func TestSession_FailedSaveKeepsDraft(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	st.saveFn = func(*document.Snapshot) error { return errors.New("offline") }
	s := newTestSession(t, st, clock, &notifications{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "keep me")))
	_, err = s.Flush(context.Background())
	require.Error(t, err)
	require.True(t, s.Dirty())

	st.saveFn = nil
	_, err = s.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, st.saves(), 1)
}

func TestSession_StopCancelsPendingSave(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	s := newTestSession(t, st, clock, &notifications{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "never saved")))
	s.Stop()
	clock.Advance(time.Minute)

	require.Empty(t, st.saves())
	require.Equal(t, StateStopped, s.State())
	require.ErrorIs(t, s.Edit(baseSnapshot()), ErrSessionStopped)
	_, err = s.Flush(context.Background())
	require.ErrorIs(t, err, ErrSessionStopped)
}

func TestSession_StopDiscardsInFlightSave(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	var saved []*document.SaveReport
	var s *Session
	st.saveFn = func(*document.Snapshot) error {
		s.Stop()
		return nil
	}
	s = NewSession("p1", st.fetch, st.save, Options{
		Clock:   clock,
		OnSaved: func(r *document.SaveReport, _ error) { saved = append(saved, r) },
	})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "racing")))
	_, err = s.Flush(context.Background())
	require.ErrorIs(t, err, ErrSessionStopped)
	require.Empty(t, saved)
}

func TestSession_RemoteChangeAndReload(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{snap: baseSnapshot()}}
	n := &notifications{}
	s := newTestSession(t, st, clock, n)
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	theirs := withAnnotation(baseSnapshot(), "a7", "from bob")
	theirs.Blob.Writer = "tab-bob"
	st.set(theirs)
	clock.Advance(DefaultPollInterval)
	require.True(t, s.Pending())
	require.Equal(t, 1, n.count())

	require.NoError(t, s.Edit(withAnnotation(baseSnapshot(), "a1", "unsaved")))
	snap, ok := s.Reload()
	require.True(t, ok)
	require.Equal(t, "a7", snap.Annotations[0].ID)
	require.False(t, s.Dirty(), "reload discards the unsaved draft")

	clock.Advance(DefaultSaveDebounce)
	require.Empty(t, st.saves())
}

func TestSession_StartFailure(t *testing.T) {
	clock := newFakeClock()
	st := &store{remote: remote{err: errors.New("not found")}}
	s := newTestSession(t, st, clock, &notifications{})

	_, err := s.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, StateStopped, s.State())
}
