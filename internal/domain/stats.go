package domain

import "time"

// StatsPeriod represents a time window for statistics queries.
type StatsPeriod string

// StatsPeriod constants for time window queries.
const (
	StatsPeriodDay     StatsPeriod = "day"
	StatsPeriodWeek    StatsPeriod = "week"
	StatsPeriodMonth   StatsPeriod = "month"
	StatsPeriodYear    StatsPeriod = "year"
	StatsPeriodAllTime StatsPeriod = "all"
)

// Valid returns true if the period is a recognized value.
func (p StatsPeriod) Valid() bool {
	switch p {
	case StatsPeriodDay, StatsPeriodWeek, StatsPeriodMonth, StatsPeriodYear, StatsPeriodAllTime:
		return true
	default:
		return false
	}
}

// Bounds returns the start and end times for a period relative to now.
// Start is inclusive, end is exclusive (midnight tomorrow). All day math
// uses now's location so boundaries fall on local calendar days.
func (p StatsPeriod) Bounds(now time.Time) (start, end time.Time) {
	today := StartOfDay(now)
	endOfToday := today.AddDate(0, 0, 1)

	switch p {
	case StatsPeriodDay:
		return today, endOfToday
	case StatsPeriodWeek:
		return today.AddDate(0, 0, -6), endOfToday
	case StatsPeriodMonth:
		return today.AddDate(0, -1, 0), endOfToday
	case StatsPeriodYear:
		return today.AddDate(-1, 0, 0), endOfToday
	case StatsPeriodAllTime:
		return time.Time{}, endOfToday // Zero time = beginning of time
	default:
		return today, endOfToday
	}
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether two instants fall on the same local calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DailyStats summarizes reading activity for one calendar day.
type DailyStats struct {
	Date              time.Time `json:"date"`
	TotalMinutes      float64   `json:"total_minutes"`
	PagesRead         int       `json:"pages_read"`
	SessionCount      int       `json:"session_count"`
	AverageFocusScore float64   `json:"average_focus_score"`
	FavoriteLocation  string    `json:"favorite_location,omitempty"`
}

// PeriodStats summarizes reading activity over a day range.
type PeriodStats struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TotalMinutes float64   `json:"total_minutes"`
	PagesRead    int       `json:"pages_read"`
	SessionCount int       `json:"session_count"`
	DaysActive   int       `json:"days_active"` // Distinct local calendar days with >=1 session
}

// DailyReading is one point in a reading history series.
type DailyReading struct {
	Date    time.Time `json:"date"`
	Minutes float64   `json:"minutes"`
	Pages   int       `json:"pages"`
}
