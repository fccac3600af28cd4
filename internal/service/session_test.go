package service_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readtrackapp/readtrack-server/internal/clock"
	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/errors"
	"github.com/readtrackapp/readtrack-server/internal/service"
	"github.com/readtrackapp/readtrack-server/internal/store"
	"github.com/readtrackapp/readtrack-server/internal/store/sqlite"
	"github.com/readtrackapp/readtrack-server/internal/validation"
)

const testGrace = 60 * time.Second

type testEnv struct {
	store    *sqlite.Store
	clock    *clock.Mock
	sessions *service.SessionService
	books    *service.BookService
	stats    *service.StatsService
}

// newTestEnv builds a full service stack on a throwaway database, with the
// clock pinned to a fixed evening instant.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 8, 20, 19, 0, 0, 0, time.UTC))

	sessions, err := service.NewSessionService(context.Background(), st, mock, logger, testGrace)
	require.NoError(t, err)

	return &testEnv{
		store:    st,
		clock:    mock,
		sessions: sessions,
		books:    service.NewBookService(st, mock, validation.New(), logger),
		stats:    service.NewStatsService(st, mock, logger),
	}
}

func (e *testEnv) addBook(t *testing.T, title string, totalPages, currentPage int) *domain.Book {
	t.Helper()
	book, err := e.books.Create(context.Background(), service.CreateBookRequest{
		Title:       title,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
	})
	require.NoError(t, err)
	return book
}

func TestSessionLifecycleFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 50)

	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{Location: "couch"})
	require.NoError(t, err)
	assert.Equal(t, 50, session.StartPage)
	assert.Nil(t, session.EndTime)

	// Read 600s, pause for 120s, read another 300s.
	env.clock.Add(600 * time.Second)
	require.NoError(t, err)
	require.NoError(t, env.sessions.Pause(ctx))

	env.clock.Add(120 * time.Second)
	require.NoError(t, env.sessions.Resume(ctx))

	env.clock.Add(300 * time.Second)
	require.NoError(t, env.sessions.RecordDistraction(ctx))
	require.NoError(t, env.sessions.RecordDistraction(ctx))

	done, err := env.sessions.End(ctx, 70)
	require.NoError(t, err)

	assert.Equal(t, 20, done.PagesRead())
	assert.Equal(t, 90.0, done.FocusScore())
	require.NotNil(t, done.EndTime)

	// Canonical duration from the event log excludes the pause.
	events, err := env.store.GetSessionEvents(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, 900*time.Second, done.ActualReadingTime(events, env.clock.Now()))

	// Book advanced atomically with the session close.
	gotBook, err := env.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, gotBook.CurrentPage)

	// Engine is idle again.
	snap := env.sessions.Current()
	assert.False(t, snap.Tracking)
	assert.Zero(t, env.sessions.CurrentDuration())
}

func TestStartIdempotentSameBook(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	first, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	again, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Only one session row exists.
	all, err := env.store.GetAllSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStartRejectedWhileOtherBookActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.addBook(t, "Dune", 412, 0)
	second := env.addBook(t, "Hyperion", 482, 0)

	_, err := env.sessions.Start(ctx, first.ID, service.StartOptions{})
	require.NoError(t, err)

	_, err = env.sessions.Start(ctx, second.ID, service.StartOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionActive))
}

func TestStartUnknownBook(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sessions.Start(context.Background(), "book-missing", service.StartOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestPauseResumeNoOps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	// Resume while reading is a no-op, not an error.
	require.NoError(t, env.sessions.Resume(ctx))

	env.clock.Add(10 * time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))

	// Double pause must not double-count elapsed time or add an event.
	env.clock.Add(time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))

	assert.Equal(t, 10*time.Minute, env.sessions.CurrentDuration())

	events, err := env.store.GetSessionEvents(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2) // start + one pause
}

func TestCommandsWithoutActiveSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.True(t, errors.Is(env.sessions.Pause(ctx), errors.ErrNotFound))
	assert.True(t, errors.Is(env.sessions.Resume(ctx), errors.ErrNotFound))
	assert.True(t, errors.Is(env.sessions.RecordDistraction(ctx), errors.ErrNotFound))
	assert.True(t, errors.Is(env.sessions.Cancel(ctx), errors.ErrNotFound))

	_, err := env.sessions.End(ctx, 10)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestEndInvalidPageKeepsSessionActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 50)
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	env.clock.Add(10 * time.Minute)

	// Before the start page.
	_, err = env.sessions.End(ctx, 40)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))

	// Past the end of the book.
	_, err = env.sessions.End(ctx, 500)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPage))

	// Session is still live and incomplete; timing keeps running.
	snap := env.sessions.Current()
	assert.True(t, snap.Tracking)
	got, err := env.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EndTime)

	// A valid end still works afterwards.
	_, err = env.sessions.End(ctx, 60)
	require.NoError(t, err)
}

func TestCancelErasesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 50)
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	env.clock.Add(5 * time.Minute)
	require.NoError(t, env.sessions.RecordDistraction(ctx))
	require.NoError(t, env.sessions.Cancel(ctx))

	// Session and its events are gone; the book is untouched.
	_, err = env.store.GetSession(ctx, session.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))

	events, err := env.store.GetSessionEvents(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	gotBook, err := env.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, gotBook.CurrentPage)

	// A fresh start works immediately.
	_, err = env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)
}

func TestCurrentDurationStates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Idle.
	assert.Zero(t, env.sessions.CurrentDuration())

	book := env.addBook(t, "Dune", 412, 0)
	_, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	// Reading: open segment counts.
	env.clock.Add(7 * time.Minute)
	assert.Equal(t, 7*time.Minute, env.sessions.CurrentDuration())

	// Paused: frozen at the accumulated total.
	require.NoError(t, env.sessions.Pause(ctx))
	env.clock.Add(30 * time.Minute)
	assert.Equal(t, 7*time.Minute, env.sessions.CurrentDuration())

	// Resumed: the pause gap stays excluded.
	require.NoError(t, env.sessions.Resume(ctx))
	env.clock.Add(3 * time.Minute)
	assert.Equal(t, 10*time.Minute, env.sessions.CurrentDuration())
}

func TestRecoveryAdoptsIncompleteSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := env.addBook(t, "Dune", 412, 50)
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{Location: "desk"})
	require.NoError(t, err)

	env.clock.Add(10 * time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))
	env.clock.Add(2 * time.Minute)
	require.NoError(t, env.sessions.Resume(ctx))
	env.clock.Add(5 * time.Minute)

	// Simulate a crash: build a fresh engine over the same store.
	recovered, err := service.NewSessionService(ctx, env.store, env.clock, logger, testGrace)
	require.NoError(t, err)

	snap := recovered.Current()
	assert.True(t, snap.Tracking)
	assert.Equal(t, session.ID, snap.SessionID)
	assert.False(t, snap.Paused)

	// Replayed time matches what the original engine had accumulated.
	assert.Equal(t, 15*time.Minute, recovered.CurrentDuration())

	// The recovered engine can finish the session normally.
	done, err := recovered.End(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, 20, done.PagesRead())
}

func TestRecoveryPausedSessionStaysPaused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := env.addBook(t, "Dune", 412, 0)
	_, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	env.clock.Add(8 * time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))
	env.clock.Add(time.Hour)

	recovered, err := service.NewSessionService(ctx, env.store, env.clock, logger, testGrace)
	require.NoError(t, err)

	snap := recovered.Current()
	assert.True(t, snap.Paused)
	assert.Equal(t, 8*time.Minute, recovered.CurrentDuration())
}

func TestRecoveryClosesOrphans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := env.addBook(t, "Dune", 412, 30)

	// Seed two incomplete sessions directly, simulating corrupt state that
	// the engine itself would never produce.
	older := domain.NewReadingSession("rs-older", book.ID, 30, "", env.clock.Now().Add(-2*time.Hour))
	require.NoError(t, env.store.StartSession(ctx, older,
		domain.NewSessionEvent(older.ID, domain.EventStart, older.StartTime)))

	newer := domain.NewReadingSession("rs-newer", book.ID, 30, "", env.clock.Now().Add(-20*time.Minute))
	require.NoError(t, env.store.StartSession(ctx, newer,
		domain.NewSessionEvent(newer.ID, domain.EventStart, newer.StartTime)))

	recovered, err := service.NewSessionService(ctx, env.store, env.clock, logger, testGrace)
	require.NoError(t, err)

	// Most recent startTime wins.
	snap := recovered.Current()
	assert.True(t, snap.Tracking)
	assert.Equal(t, newer.ID, snap.SessionID)

	// The older one was auto-closed at startTime + grace with no progress.
	closed, err := env.store.GetSession(ctx, older.ID)
	require.NoError(t, err)
	require.NotNil(t, closed.EndTime)
	assert.Equal(t, older.StartTime.Add(testGrace), *closed.EndTime)
	assert.Equal(t, closed.StartPage, closed.EndPage)

	incomplete, err := env.store.GetIncompleteSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, incomplete, 1)
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	ch, cancel := env.sessions.Subscribe()
	defer cancel()

	_, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	snap := <-ch
	assert.True(t, snap.Tracking)
	assert.False(t, snap.Paused)

	// Without draining, two quick transitions leave only the latest state.
	env.clock.Add(time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))
	require.NoError(t, env.sessions.Resume(ctx))

	snap = <-ch
	assert.True(t, snap.Tracking)
	assert.False(t, snap.Paused)
}

func TestDistractionsDoNotAffectTiming(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)
	_, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	env.clock.Add(10 * time.Minute)
	require.NoError(t, env.sessions.RecordDistraction(ctx))
	env.clock.Add(10 * time.Minute)

	assert.Equal(t, 20*time.Minute, env.sessions.CurrentDuration())
	assert.Equal(t, 1, env.sessions.Current().DistractionCount)
}

func TestRecordDistractionWhilePausedIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	env.clock.Add(10 * time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))

	// Distractions only count while actually reading.
	require.NoError(t, env.sessions.RecordDistraction(ctx))
	assert.Zero(t, env.sessions.Current().DistractionCount)

	// No event was appended either.
	events, err := env.store.GetSessionEvents(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2) // start + pause

	// After resuming, distractions count again.
	require.NoError(t, env.sessions.Resume(ctx))
	require.NoError(t, env.sessions.RecordDistraction(ctx))
	assert.Equal(t, 1, env.sessions.Current().DistractionCount)

	done, err := env.sessions.End(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 95.0, done.FocusScore())
}

func TestStartPageOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 50)

	// Reread an earlier chapter instead of picking up at page 50.
	page := 10
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{StartPage: &page})
	require.NoError(t, err)
	assert.Equal(t, 10, session.StartPage)

	env.clock.Add(20 * time.Minute)
	done, err := env.sessions.End(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 20, done.PagesRead())

	// The book still tracks the end page.
	gotBook, err := env.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, gotBook.CurrentPage)
}

func TestStartPageOverrideOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 50)

	for _, page := range []int{-1, 500} {
		p := page
		_, err := env.sessions.Start(ctx, book.ID, service.StartOptions{StartPage: &p})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInvalidPage))
	}

	// Nothing was persisted by the rejected starts.
	all, err := env.store.GetAllSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// bookVanishingStore hides books on demand so the lookup failure path of
// End can be exercised; the schema's foreign key makes the state
// unreachable through the real store.
type bookVanishingStore struct {
	store.Store
	vanished bool
}

func (s *bookVanishingStore) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if s.vanished {
		return nil, store.ErrNotFound
	}
	return s.Store.GetBook(ctx, id)
}

func TestEndBookLookupFailureIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	book := env.addBook(t, "Dune", 412, 0)

	vanishing := &bookVanishingStore{Store: env.store}
	sessions, err := service.NewSessionService(ctx, vanishing, env.clock, logger, testGrace)
	require.NoError(t, err)

	_, err = sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)

	vanishing.vanished = true
	_, err = sessions.End(ctx, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
