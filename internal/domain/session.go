package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a session lifecycle event.
type EventType string

// Session lifecycle event types. Events are append-only; everything
// about a session's timing derives from replaying them in order.
const (
	EventStart       EventType = "start"
	EventPause       EventType = "pause"
	EventResume      EventType = "resume"
	EventDistraction EventType = "distraction"
	EventEnd         EventType = "end"
)

// Valid returns true if the event type is a recognized value.
func (t EventType) Valid() bool {
	switch t {
	case EventStart, EventPause, EventResume, EventDistraction, EventEnd:
		return true
	default:
		return false
	}
}

// SessionEvent is the atomic, immutable record of a lifecycle transition.
// Events belong to their session and are cascade-deleted with it.
type SessionEvent struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NewSessionEvent creates an event stamped at the given instant.
func NewSessionEvent(sessionID string, t EventType, at time.Time) SessionEvent {
	return SessionEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Timestamp: at,
		Type:      t,
	}
}

// ReadingSession records one timed sitting with a book.
// EndTime == nil is the "incomplete" discriminator; at most one incomplete
// session may exist system-wide (enforced by the session service).
type ReadingSession struct {
	ID               string     `json:"id"`
	BookID           string     `json:"book_id"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	StartPage        int        `json:"start_page"`
	EndPage          int        `json:"end_page"`
	Location         string     `json:"location,omitempty"`
	DistractionCount int        `json:"distraction_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewReadingSession creates an incomplete session starting now.
func NewReadingSession(id, bookID string, startPage int, location string, now time.Time) *ReadingSession {
	return &ReadingSession{
		ID:        id,
		BookID:    bookID,
		StartTime: now,
		StartPage: startPage,
		Location:  location,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsComplete reports whether the session has been finalized.
func (s *ReadingSession) IsComplete() bool {
	return s.EndTime != nil
}

// PagesRead returns the page delta for a completed session, 0 while active.
func (s *ReadingSession) PagesRead() int {
	if s.EndTime == nil {
		return 0
	}
	return s.EndPage - s.StartPage
}

// FocusScore is 100 minus 5 points per distraction, floored at 0.
func (s *ReadingSession) FocusScore() float64 {
	score := 100 - float64(s.DistractionCount)*5
	if score < 0 {
		return 0
	}
	return score
}

// Replay walks an ordered event log and reconstructs the timing state at
// the end of the log: total accumulated reading time (pauses excluded),
// whether the session was paused, and the anchor of the still-open reading
// segment (meaningful only when not paused and not ended).
//
// Out-of-order guards (pause while paused, resume while reading) are
// no-ops, mirroring the command semantics that produced the log.
func Replay(startTime time.Time, events []SessionEvent) (accumulated time.Duration, paused bool, anchor time.Time) {
	anchor = startTime
	for _, ev := range events {
		switch ev.Type {
		case EventPause:
			if !paused {
				accumulated += ev.Timestamp.Sub(anchor)
				paused = true
			}
		case EventResume:
			if paused {
				anchor = ev.Timestamp
				paused = false
			}
		case EventEnd:
			if !paused {
				accumulated += ev.Timestamp.Sub(anchor)
				paused = true
			}
		case EventStart, EventDistraction:
			// No effect on timing.
		}
	}
	return accumulated, paused, anchor
}

// ActualReadingTime is the canonical duration of a session: wall-clock time
// excluding paused intervals, derived from the event log. For an incomplete
// session that is still reading, the open segment is measured up to now.
func (s *ReadingSession) ActualReadingTime(events []SessionEvent, now time.Time) time.Duration {
	accumulated, paused, anchor := Replay(s.StartTime, events)
	if s.EndTime == nil && !paused {
		accumulated += now.Sub(anchor)
	}
	return accumulated
}
