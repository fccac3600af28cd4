package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/readtrackapp/readtrack-server/internal/clock"
	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/errors"
	"github.com/readtrackapp/readtrack-server/internal/id"
	"github.com/readtrackapp/readtrack-server/internal/store"
)

// Snapshot is an immutable view of the tracker state, published after every
// committed transition. Readers never block writers.
type Snapshot struct {
	SessionID        string
	BookID           string
	Tracking         bool
	Paused           bool
	DistractionCount int

	// Accumulated is reading time folded in by past pause/resume cycles.
	// When tracking and not paused, the open segment since ResumeAnchor
	// is added on top by CurrentDuration.
	Accumulated  time.Duration
	ResumeAnchor time.Time
}

// idle is the snapshot published when no session is being tracked.
var idle = &Snapshot{}

// SessionService is the reading session state machine. At most one session
// is tracked at a time; every transition is committed to the store before
// the in-memory state changes, so a crash at any point leaves the store as
// the single source of truth.
//
// Commands are serialized by a mutex. State reads go through an atomic
// snapshot pointer and never contend with commands.
type SessionService struct {
	store  store.Store
	clock  clock.Clock
	logger *slog.Logger
	grace  time.Duration

	mu       sync.Mutex // serializes commands
	session  *domain.ReadingSession
	snapshot atomic.Pointer[Snapshot]

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

// NewSessionService creates the session tracker and runs crash recovery
// before returning. Recovery adopts the most recently started incomplete
// session, replaying its event log, and closes any others at their start
// time plus the grace interval.
func NewSessionService(ctx context.Context, st store.Store, clk clock.Clock, logger *slog.Logger, grace time.Duration) (*SessionService, error) {
	s := &SessionService{
		store:  st,
		clock:  clk,
		logger: logger,
		grace:  grace,
		subs:   make(map[chan Snapshot]struct{}),
	}
	s.snapshot.Store(idle)

	if err := s.recover(ctx); err != nil {
		return nil, fmt.Errorf("recover sessions: %w", err)
	}
	return s, nil
}

// recover reconciles in-memory state with whatever the store holds.
// Orphan incomplete sessions (all but the most recent) are closed with
// endPage = startPage at startTime + grace, so they count a minimal
// sliver of time rather than an unbounded open interval.
func (s *SessionService) recover(ctx context.Context) error {
	incomplete, err := s.store.GetIncompleteSessions(ctx)
	if err != nil {
		return fmt.Errorf("get incomplete sessions: %w", err)
	}
	if len(incomplete) == 0 {
		return nil
	}

	// Most recent first; adopt the head, close the rest.
	for _, orphan := range incomplete[1:] {
		if err := s.closeOrphan(ctx, orphan); err != nil {
			return err
		}
	}

	adopted := incomplete[0]
	events, err := s.store.GetSessionEvents(ctx, adopted.ID)
	if err != nil {
		return fmt.Errorf("get session events: %w", err)
	}

	accumulated, paused, anchor := domain.Replay(adopted.StartTime, events)
	s.session = adopted
	s.publish(&Snapshot{
		SessionID:        adopted.ID,
		BookID:           adopted.BookID,
		Tracking:         true,
		Paused:           paused,
		DistractionCount: adopted.DistractionCount,
		Accumulated:      accumulated,
		ResumeAnchor:     anchor,
	})

	s.logger.Info("recovered reading session",
		"session_id", adopted.ID,
		"book_id", adopted.BookID,
		"paused", paused,
		"accumulated", accumulated,
		"orphans_closed", len(incomplete)-1)
	return nil
}

// closeOrphan finalizes an abandoned session at startTime + grace with no
// page progress. The book is left untouched.
func (s *SessionService) closeOrphan(ctx context.Context, orphan *domain.ReadingSession) error {
	endAt := orphan.StartTime.Add(s.grace)
	orphan.EndTime = &endAt
	orphan.EndPage = orphan.StartPage
	orphan.UpdatedAt = endAt

	end := domain.NewSessionEvent(orphan.ID, domain.EventEnd, endAt)
	if err := s.store.FinishSession(ctx, orphan, nil, end); err != nil {
		return fmt.Errorf("close orphan session %s: %w", orphan.ID, err)
	}

	s.logger.Warn("closed orphan reading session",
		"session_id", orphan.ID,
		"book_id", orphan.BookID,
		"started_at", orphan.StartTime,
		"closed_at", endAt)
	return nil
}

// StartOptions carries the optional parameters of Start.
type StartOptions struct {
	// StartPage overrides the book's current page as the session's
	// starting page, e.g. when rereading an earlier chapter.
	StartPage *int
	Location  string
}

// Start begins tracking a session against the given book. Calling Start for
// the book already being tracked returns the active session unchanged.
// Starting against a different book fails with ErrSessionActive.
func (s *SessionService) Start(ctx context.Context, bookID string, opts StartOptions) (*domain.ReadingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		if s.session.BookID == bookID {
			return s.session, nil
		}
		return nil, errors.SessionActive(
			fmt.Sprintf("a session for book %s is already in progress", s.session.BookID))
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("book %s not found", bookID)
		}
		return nil, errors.Storef(err, "get book %s", bookID)
	}

	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "generate session ID")
	}

	startPage := book.CurrentPage
	if opts.StartPage != nil {
		startPage = *opts.StartPage
		if startPage < 0 || startPage > book.TotalPages {
			return nil, errors.InvalidPagef("start page %d is outside 0..%d", startPage, book.TotalPages)
		}
	}

	now := s.clock.Now()
	session := domain.NewReadingSession(sessionID, bookID, startPage, opts.Location, now)
	start := domain.NewSessionEvent(sessionID, domain.EventStart, now)

	if err := s.store.StartSession(ctx, session, start); err != nil {
		return nil, errors.Storef(err, "start session for book %s", bookID)
	}

	s.session = session
	s.publish(&Snapshot{
		SessionID:    session.ID,
		BookID:       bookID,
		Tracking:     true,
		ResumeAnchor: now,
	})

	s.logger.Info("reading session started",
		"session_id", session.ID,
		"book_id", bookID,
		"start_page", session.StartPage,
		"location", opts.Location)
	return session, nil
}

// Pause folds the open reading segment into the accumulated total.
// Pausing while already paused is a no-op.
func (s *SessionService) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.requireActive()
	if err != nil {
		return err
	}
	if snap.Paused {
		return nil
	}

	now := s.clock.Now()
	ev := domain.NewSessionEvent(s.session.ID, domain.EventPause, now)
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return errors.Storef(err, "append pause event")
	}

	next := *snap
	next.Accumulated += now.Sub(snap.ResumeAnchor)
	next.Paused = true
	s.publish(&next)

	s.logger.Debug("session paused", "session_id", s.session.ID, "accumulated", next.Accumulated)
	return nil
}

// Resume re-anchors the open reading segment at now.
// Resuming while not paused is a no-op.
func (s *SessionService) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.requireActive()
	if err != nil {
		return err
	}
	if !snap.Paused {
		return nil
	}

	now := s.clock.Now()
	ev := domain.NewSessionEvent(s.session.ID, domain.EventResume, now)
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		return errors.Storef(err, "append resume event")
	}

	next := *snap
	next.Paused = false
	next.ResumeAnchor = now
	s.publish(&next)

	s.logger.Debug("session resumed", "session_id", s.session.ID)
	return nil
}

// RecordDistraction increments the distraction counter. Distractions do not
// affect timing; they only lower the focus score. Counted only while
// actually reading; a distraction during a pause is a no-op.
func (s *SessionService) RecordDistraction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.requireActive()
	if err != nil {
		return err
	}
	if snap.Paused {
		return nil
	}

	now := s.clock.Now()
	count := snap.DistractionCount + 1
	ev := domain.NewSessionEvent(s.session.ID, domain.EventDistraction, now)
	if err := s.store.RecordDistraction(ctx, s.session.ID, count, ev); err != nil {
		return errors.Storef(err, "record distraction")
	}

	s.session.DistractionCount = count
	s.session.UpdatedAt = now

	next := *snap
	next.DistractionCount = count
	s.publish(&next)

	s.logger.Debug("distraction recorded", "session_id", s.session.ID, "count", count)
	return nil
}

// End finalizes the active session at the given page. The session row, the
// book's current page, and the end event commit in one transaction; on any
// failure the session stays active and tracked.
func (s *SessionService) End(ctx context.Context, endPage int) (*domain.ReadingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.requireActive()
	if err != nil {
		return nil, err
	}

	session := s.session
	if endPage < session.StartPage {
		return nil, errors.InvalidPagef("end page %d is before start page %d", endPage, session.StartPage)
	}

	book, err := s.store.GetBook(ctx, session.BookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.NotFoundf("book %s not found", session.BookID)
		}
		return nil, errors.Storef(err, "get book %s", session.BookID)
	}
	if endPage > book.TotalPages {
		return nil, errors.InvalidPagef("end page %d exceeds book length %d", endPage, book.TotalPages)
	}

	now := s.clock.Now()
	session.EndTime = &now
	session.EndPage = endPage
	session.UpdatedAt = now

	book.CurrentPage = endPage
	book.UpdatedAt = now

	end := domain.NewSessionEvent(session.ID, domain.EventEnd, now)
	if err := s.store.FinishSession(ctx, session, book, end); err != nil {
		// Roll back the in-memory mutation; the session is still live.
		session.EndTime = nil
		session.EndPage = 0
		return nil, errors.Storef(err, "finish session %s", session.ID)
	}

	duration := snap.Accumulated
	if !snap.Paused {
		duration += now.Sub(snap.ResumeAnchor)
	}

	s.session = nil
	s.publish(idle)

	s.logger.Info("reading session ended",
		"session_id", session.ID,
		"book_id", session.BookID,
		"pages_read", session.PagesRead(),
		"duration", duration,
		"focus_score", session.FocusScore())
	return session, nil
}

// Cancel discards the active session entirely, as if it never happened.
// The book is untouched and the event log is deleted with the session.
func (s *SessionService) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireActive(); err != nil {
		return err
	}

	sessionID := s.session.ID
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return errors.Storef(err, "delete session %s", sessionID)
	}

	s.session = nil
	s.publish(idle)

	s.logger.Info("reading session cancelled", "session_id", sessionID)
	return nil
}

// Current returns the latest published snapshot. Safe to call from any
// goroutine; never blocks on in-flight commands.
func (s *SessionService) Current() Snapshot {
	return *s.snapshot.Load()
}

// CurrentDuration reports accumulated reading time as of now, excluding
// paused intervals and the still-open segment's future.
func (s *SessionService) CurrentDuration() time.Duration {
	snap := s.snapshot.Load()
	if !snap.Tracking {
		return 0
	}
	d := snap.Accumulated
	if !snap.Paused {
		d += s.clock.Now().Sub(snap.ResumeAnchor)
	}
	return d
}

// Subscribe returns a channel receiving a Snapshot after every committed
// transition. Slow consumers see the latest state, not every intermediate
// one. Call the returned cancel func to unsubscribe.
func (s *SessionService) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// requireActive returns the current snapshot or ErrNotFound when idle.
// Callers must hold mu.
func (s *SessionService) requireActive() (*Snapshot, error) {
	if s.session == nil {
		return nil, errors.NotFound("no reading session in progress")
	}
	return s.snapshot.Load(), nil
}

// publish stores the new snapshot and fans it out to subscribers.
// Full subscriber buffers are drained first so the latest state wins.
func (s *SessionService) publish(snap *Snapshot) {
	s.snapshot.Store(snap)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- *snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- *snap:
			default:
			}
		}
	}
}
