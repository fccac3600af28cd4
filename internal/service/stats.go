package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/readtrackapp/readtrack-server/internal/clock"
	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/errors"
	"github.com/readtrackapp/readtrack-server/internal/store"
)

// minSpeedDuration filters out sessions too short to give a meaningful
// pages-per-hour figure.
const minSpeedDuration = 5 * time.Minute

// StatsService computes derived reading statistics from the session store.
// It is read-only and never mutates lifecycle state.
type StatsService struct {
	store  store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewStatsService creates a stats service.
func NewStatsService(st store.Store, clk clock.Clock, logger *slog.Logger) *StatsService {
	return &StatsService{store: st, clock: clk, logger: logger}
}

// ForDate summarizes sessions whose start time falls on the given local
// calendar day.
func (s *StatsService) ForDate(ctx context.Context, date time.Time) (*domain.DailyStats, error) {
	dayStart := domain.StartOfDay(date)
	dayEnd := dayStart.AddDate(0, 0, 1)

	sessions, err := s.store.GetSessionsInRange(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, errors.Storef(err, "get sessions for %s", dayStart.Format("2006-01-02"))
	}

	stats := &domain.DailyStats{Date: dayStart}
	locations := make(map[string]int)
	var focusTotal float64

	for _, session := range sessions {
		duration, err := s.sessionDuration(ctx, session)
		if err != nil {
			return nil, err
		}
		stats.TotalMinutes += duration.Minutes()
		stats.PagesRead += session.PagesRead()
		stats.SessionCount++
		focusTotal += session.FocusScore()
		if session.Location != "" {
			locations[session.Location]++
		}
	}

	if stats.SessionCount > 0 {
		stats.AverageFocusScore = focusTotal / float64(stats.SessionCount)
	}
	stats.FavoriteLocation = mostFrequent(sessions, locations)
	return stats, nil
}

// ForPeriod summarizes sessions over a named period ending today.
func (s *StatsService) ForPeriod(ctx context.Context, period domain.StatsPeriod) (*domain.PeriodStats, error) {
	if !period.Valid() {
		return nil, errors.Validation("unknown stats period: " + string(period))
	}

	start, end := period.Bounds(s.clock.Now())
	return s.ForRange(ctx, start, end)
}

// ForRange summarizes sessions whose start time falls in [start, end).
func (s *StatsService) ForRange(ctx context.Context, start, end time.Time) (*domain.PeriodStats, error) {
	sessions, err := s.store.GetSessionsInRange(ctx, start, end)
	if err != nil {
		return nil, errors.Storef(err, "get sessions in range")
	}

	stats := &domain.PeriodStats{Start: start, End: end}
	activeDays := make(map[string]struct{})

	for _, session := range sessions {
		duration, err := s.sessionDuration(ctx, session)
		if err != nil {
			return nil, err
		}
		stats.TotalMinutes += duration.Minutes()
		stats.PagesRead += session.PagesRead()
		stats.SessionCount++
		activeDays[domain.StartOfDay(session.StartTime).Format("2006-01-02")] = struct{}{}
	}

	stats.DaysActive = len(activeDays)
	return stats, nil
}

// Streak counts consecutive local calendar days with at least one session,
// walking backward from today. A day with zero sessions breaks the streak
// unless that day is today itself; today still in progress never breaks it.
func (s *StatsService) Streak(ctx context.Context) (int, error) {
	sessions, err := s.store.GetAllSessions(ctx)
	if err != nil {
		return 0, errors.Storef(err, "get all sessions")
	}

	days := make(map[string]struct{}, len(sessions))
	for _, session := range sessions {
		days[domain.StartOfDay(session.StartTime).Format("2006-01-02")] = struct{}{}
	}

	now := s.clock.Now()
	streak := 0
	day := domain.StartOfDay(now)

	if _, ok := days[day.Format("2006-01-02")]; ok {
		streak++
	}
	// Whether or not today has a session yet, keep walking from yesterday.
	for day = day.AddDate(0, 0, -1); ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day.Format("2006-01-02")]; !ok {
			break
		}
		streak++
	}
	return streak, nil
}

// ReadingSpeed returns average pages per hour over qualifying completed
// sessions. Sessions with five minutes or less of actual reading time, or
// with no page progress, are excluded as noise. Returns 0 when nothing
// qualifies.
func (s *StatsService) ReadingSpeed(ctx context.Context) (float64, error) {
	sessions, err := s.store.GetAllSessions(ctx)
	if err != nil {
		return 0, errors.Storef(err, "get all sessions")
	}

	var totalPages int
	var totalTime time.Duration

	for _, session := range sessions {
		if !session.IsComplete() || session.PagesRead() <= 0 {
			continue
		}
		duration, err := s.sessionDuration(ctx, session)
		if err != nil {
			return 0, err
		}
		if duration <= minSpeedDuration {
			continue
		}
		totalPages += session.PagesRead()
		totalTime += duration
	}

	if totalTime <= 0 {
		return 0, nil
	}
	return float64(totalPages) / totalTime.Hours(), nil
}

// TotalPagesAllTime sums pages read over every completed session.
func (s *StatsService) TotalPagesAllTime(ctx context.Context) (int, error) {
	sessions, err := s.store.GetAllSessions(ctx)
	if err != nil {
		return 0, errors.Storef(err, "get all sessions")
	}

	total := 0
	for _, session := range sessions {
		total += session.PagesRead()
	}
	return total, nil
}

// TotalHoursAllTime sums actual reading time over every session.
func (s *StatsService) TotalHoursAllTime(ctx context.Context) (float64, error) {
	sessions, err := s.store.GetAllSessions(ctx)
	if err != nil {
		return 0, errors.Storef(err, "get all sessions")
	}

	var total time.Duration
	for _, session := range sessions {
		duration, err := s.sessionDuration(ctx, session)
		if err != nil {
			return 0, err
		}
		total += duration
	}
	return total.Hours(), nil
}

// History returns one point per local calendar day for the last `days`
// days, today included, oldest first. Days with no reading appear as
// zero-valued points so charts have a continuous axis.
func (s *StatsService) History(ctx context.Context, days int) ([]domain.DailyReading, error) {
	if days <= 0 {
		return nil, errors.Validation("history days must be positive")
	}

	today := domain.StartOfDay(s.clock.Now())
	start := today.AddDate(0, 0, -(days - 1))
	end := today.AddDate(0, 0, 1)

	sessions, err := s.store.GetSessionsInRange(ctx, start, end)
	if err != nil {
		return nil, errors.Storef(err, "get sessions in range")
	}

	byDay := make(map[string]*domain.DailyReading)
	for _, session := range sessions {
		duration, err := s.sessionDuration(ctx, session)
		if err != nil {
			return nil, err
		}
		key := domain.StartOfDay(session.StartTime).Format("2006-01-02")
		point := byDay[key]
		if point == nil {
			point = &domain.DailyReading{Date: domain.StartOfDay(session.StartTime)}
			byDay[key] = point
		}
		point.Minutes += duration.Minutes()
		point.Pages += session.PagesRead()
	}

	series := make([]domain.DailyReading, 0, days)
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		if point := byDay[day.Format("2006-01-02")]; point != nil {
			series = append(series, *point)
		} else {
			series = append(series, domain.DailyReading{Date: day})
		}
	}
	return series, nil
}

// sessionDuration resolves a session's actual reading time by replaying
// its event log. Incomplete sessions are measured up to now.
func (s *StatsService) sessionDuration(ctx context.Context, session *domain.ReadingSession) (time.Duration, error) {
	events, err := s.store.GetSessionEvents(ctx, session.ID)
	if err != nil {
		return 0, errors.Storef(err, "get events for session %s", session.ID)
	}
	return session.ActualReadingTime(events, s.clock.Now()), nil
}

// mostFrequent picks the location with the highest count, breaking ties by
// first appearance in session order. Tie order is not a contract.
func mostFrequent(sessions []*domain.ReadingSession, counts map[string]int) string {
	best := ""
	bestCount := 0
	seen := make(map[string]struct{})
	for _, session := range sessions {
		loc := session.Location
		if loc == "" {
			continue
		}
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		if counts[loc] > bestCount {
			best = loc
			bestCount = counts[loc]
		}
	}
	return best
}
