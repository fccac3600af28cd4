package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/store"
)

// insertEventTx inserts a session event within tx.
func insertEventTx(ctx context.Context, tx *sql.Tx, ev domain.SessionEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO session_events (id, session_id, timestamp, event_type)
		VALUES (?, ?, ?, ?)`,
		ev.ID,
		ev.SessionID,
		formatTime(ev.Timestamp),
		string(ev.Type),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

// AppendEvent appends a single lifecycle event outside any larger transaction.
func (s *Store) AppendEvent(ctx context.Context, ev domain.SessionEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertEventTx(ctx, tx, ev)
	})
}

// GetSessionEvents returns a session's event log ordered by timestamp.
func (s *Store) GetSessionEvents(ctx context.Context, sessionID string) ([]domain.SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, timestamp, event_type
		FROM session_events
		WHERE session_id = ?
		ORDER BY timestamp ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.SessionEvent
	for rows.Next() {
		var (
			ev        domain.SessionEvent
			timestamp string
			eventType string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &timestamp, &eventType); err != nil {
			return nil, err
		}
		ev.Timestamp, err = parseTime(timestamp)
		if err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(eventType)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
