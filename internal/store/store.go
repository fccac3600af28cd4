// Package store defines the persistence contract the session and stats
// services consume. The canonical implementation is store/sqlite.
package store

import (
	"context"
	"time"

	"github.com/readtrackapp/readtrack-server/internal/domain"
)

// Store is the transactional record store for books, reading sessions,
// and their lifecycle events.
//
// Consistency contract: every method that writes more than one row does
// so in a single transaction, and the store guarantees read-after-write
// consistency for subsequent calls on the same Store.
type Store interface {
	// Books.
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	ListBooks(ctx context.Context, includeInactive bool) ([]*domain.Book, error)

	// Sessions.
	// StartSession inserts the session row and its start event atomically.
	StartSession(ctx context.Context, session *domain.ReadingSession, start domain.SessionEvent) error
	GetSession(ctx context.Context, id string) (*domain.ReadingSession, error)
	// GetIncompleteSessions returns sessions with no end time, most
	// recently started first.
	GetIncompleteSessions(ctx context.Context) ([]*domain.ReadingSession, error)
	// GetSessionsInRange returns sessions whose start time falls in
	// [start, end), ordered by start time ascending.
	GetSessionsInRange(ctx context.Context, start, end time.Time) ([]*domain.ReadingSession, error)
	GetAllSessions(ctx context.Context) ([]*domain.ReadingSession, error)
	// FinishSession updates the session row, the book row (when book is
	// non-nil), and appends the end event in one transaction. A partial
	// write (session closed but book page not updated) must be impossible.
	FinishSession(ctx context.Context, session *domain.ReadingSession, book *domain.Book, end domain.SessionEvent) error
	// RecordDistraction persists the new distraction count and appends
	// the distraction event atomically.
	RecordDistraction(ctx context.Context, sessionID string, count int, ev domain.SessionEvent) error
	// DeleteSession removes the session and, via cascade, its events.
	DeleteSession(ctx context.Context, id string) error

	// Events.
	AppendEvent(ctx context.Context, ev domain.SessionEvent) error
	// GetSessionEvents returns a session's event log ordered by timestamp.
	GetSessionEvents(ctx context.Context, sessionID string) ([]domain.SessionEvent, error)

	Close() error
}
