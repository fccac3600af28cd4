package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/store"
)

// sessionColumns is the ordered list of columns selected in session queries.
// Must match the scan order in scanSession.
const sessionColumns = `id, book_id, start_time, end_time, start_page,
	end_page, location, distraction_count, created_at, updated_at`

// scanSession scans a sql.Row (or sql.Rows via its Scan method) into a domain.ReadingSession.
func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.ReadingSession, error) {
	var rs domain.ReadingSession

	var (
		startTime string
		endTime   sql.NullString
		location  sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&rs.ID,
		&rs.BookID,
		&startTime,
		&endTime,
		&rs.StartPage,
		&rs.EndPage,
		&location,
		&rs.DistractionCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if location.Valid {
		rs.Location = location.String
	}

	// Parse timestamps.
	rs.StartTime, err = parseTime(startTime)
	if err != nil {
		return nil, err
	}
	rs.EndTime, err = parseNullableTime(endTime)
	if err != nil {
		return nil, err
	}
	rs.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	rs.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &rs, nil
}

// insertSessionTx inserts a session row within tx.
func insertSessionTx(ctx context.Context, tx *sql.Tx, session *domain.ReadingSession) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reading_sessions (
			id, book_id, start_time, end_time, start_page,
			end_page, location, distraction_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.BookID,
		formatTime(session.StartTime),
		nullTimeString(session.EndTime),
		session.StartPage,
		session.EndPage,
		nullString(session.Location),
		session.DistractionCount,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// updateSessionTx performs a full row update on a session within tx.
func updateSessionTx(ctx context.Context, tx *sql.Tx, session *domain.ReadingSession) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE reading_sessions SET
			book_id = ?,
			start_time = ?,
			end_time = ?,
			start_page = ?,
			end_page = ?,
			location = ?,
			distraction_count = ?,
			created_at = ?,
			updated_at = ?
		WHERE id = ?`,
		session.BookID,
		formatTime(session.StartTime),
		nullTimeString(session.EndTime),
		session.StartPage,
		session.EndPage,
		nullString(session.Location),
		session.DistractionCount,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
		session.ID,
	)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// StartSession inserts the session row and its start event in one transaction.
func (s *Store) StartSession(ctx context.Context, session *domain.ReadingSession, start domain.SessionEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertSessionTx(ctx, tx, session); err != nil {
			return err
		}
		return insertEventTx(ctx, tx, start)
	})
}

// GetSession retrieves a single reading session by ID.
// Returns store.ErrNotFound if the session does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.ReadingSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM reading_sessions WHERE id = ?`, id)

	rs, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// GetIncompleteSessions returns sessions with no end time, most recently
// started first. In a healthy store there is at most one; recovery handles
// the rest.
func (s *Store) GetIncompleteSessions(ctx context.Context) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM reading_sessions
		WHERE end_time IS NULL
		ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// GetSessionsInRange returns sessions whose start_time falls in [start, end),
// ordered by start_time ascending.
func (s *Store) GetSessionsInRange(ctx context.Context, start, end time.Time) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM reading_sessions
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time ASC`,
		formatTime(start), formatTime(end),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// GetAllSessions returns every reading session ordered by start_time ascending.
func (s *Store) GetAllSessions(ctx context.Context) ([]*domain.ReadingSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM reading_sessions ORDER BY start_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

// FinishSession updates the session row, the book row (when non-nil), and
// appends the end event in one transaction. Either everything commits or
// nothing does.
func (s *Store) FinishSession(ctx context.Context, session *domain.ReadingSession, book *domain.Book, end domain.SessionEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateSessionTx(ctx, tx, session); err != nil {
			return err
		}
		if book != nil {
			if err := updateBookTx(ctx, tx, book); err != nil {
				return err
			}
		}
		return insertEventTx(ctx, tx, end)
	})
}

// updateBookTx updates a book's mutable fields within tx.
func updateBookTx(ctx context.Context, tx *sql.Tx, book *domain.Book) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE books SET current_page = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		book.CurrentPage,
		boolToInt(book.IsActive),
		formatTime(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RecordDistraction persists the new distraction count and appends the
// distraction event atomically.
func (s *Store) RecordDistraction(ctx context.Context, sessionID string, count int, ev domain.SessionEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE reading_sessions SET distraction_count = ?, updated_at = ? WHERE id = ?`,
			count, formatTime(ev.Timestamp), sessionID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return insertEventTx(ctx, tx, ev)
	})
}

// DeleteSession deletes a reading session by ID. Its events go with it
// via the foreign key cascade. This operation is idempotent.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reading_sessions WHERE id = ?`, id)
	return err
}

// collectSessions drains rows into a slice.
func collectSessions(rows *sql.Rows) ([]*domain.ReadingSession, error) {
	var sessions []*domain.ReadingSession
	for rows.Next() {
		rs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
