package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readtrackapp/readtrack-server/internal/domain"
	"github.com/readtrackapp/readtrack-server/internal/service"
)

// readFor completes one session against book: advance the clock by
// duration and end at startPage+pages.
func (e *testEnv) readFor(t *testing.T, bookID string, duration time.Duration, pages int, location string) *domain.ReadingSession {
	t.Helper()
	ctx := context.Background()

	session, err := e.sessions.Start(ctx, bookID, service.StartOptions{Location: location})
	require.NoError(t, err)
	e.clock.Add(duration)
	done, err := e.sessions.End(ctx, session.StartPage+pages)
	require.NoError(t, err)
	return done
}

// setDay pins the mock clock to 19:00 UTC on the given date.
func (e *testEnv) setDay(year int, month time.Month, day int) {
	e.clock.Set(time.Date(year, month, day, 19, 0, 0, 0, time.UTC))
}

func TestStatsForDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	env.setDay(2026, 8, 19)
	env.readFor(t, book.ID, 30*time.Minute, 15, "couch")

	env.setDay(2026, 8, 20)
	env.readFor(t, book.ID, 20*time.Minute, 10, "couch")

	// One distraction in the second session of the day.
	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{Location: "desk"})
	require.NoError(t, err)
	require.NoError(t, env.sessions.RecordDistraction(ctx))
	env.clock.Add(40 * time.Minute)
	_, err = env.sessions.End(ctx, session.StartPage+20)
	require.NoError(t, err)

	stats, err := env.stats.ForDate(ctx, env.clock.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SessionCount)
	assert.InDelta(t, 60.0, stats.TotalMinutes, 0.001)
	assert.Equal(t, 30, stats.PagesRead)
	// (100 + 95) / 2.
	assert.InDelta(t, 97.5, stats.AverageFocusScore, 0.001)
	// Tie between couch and desk breaks by first appearance.
	assert.Equal(t, "couch", stats.FavoriteLocation)
}

func TestStatsForDateExcludesPausedTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	session, err := env.sessions.Start(ctx, book.ID, service.StartOptions{})
	require.NoError(t, err)
	env.clock.Add(10 * time.Minute)
	require.NoError(t, env.sessions.Pause(ctx))
	env.clock.Add(50 * time.Minute)
	require.NoError(t, env.sessions.Resume(ctx))
	env.clock.Add(5 * time.Minute)
	_, err = env.sessions.End(ctx, session.StartPage+8)
	require.NoError(t, err)

	stats, err := env.stats.ForDate(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.InDelta(t, 15.0, stats.TotalMinutes, 0.001)
}

func TestStatsForDateEmpty(t *testing.T) {
	env := newTestEnv(t)

	stats, err := env.stats.ForDate(context.Background(), env.clock.Now())
	require.NoError(t, err)

	assert.Zero(t, stats.SessionCount)
	assert.Zero(t, stats.TotalMinutes)
	assert.Zero(t, stats.AverageFocusScore)
	assert.Empty(t, stats.FavoriteLocation)
}

func TestStatsForPeriod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	// Two sessions on one day, one on another, outside-the-window noise.
	env.setDay(2026, 8, 10)
	env.readFor(t, book.ID, 30*time.Minute, 10, "")

	env.setDay(2026, 8, 18)
	env.readFor(t, book.ID, 15*time.Minute, 5, "")
	env.readFor(t, book.ID, 15*time.Minute, 5, "")

	env.setDay(2026, 8, 20)
	env.readFor(t, book.ID, 60*time.Minute, 25, "")

	stats, err := env.stats.ForPeriod(ctx, domain.StatsPeriodWeek)
	require.NoError(t, err)

	// The Aug 10 session falls outside the 7-day window.
	assert.Equal(t, 3, stats.SessionCount)
	assert.InDelta(t, 90.0, stats.TotalMinutes, 0.001)
	assert.Equal(t, 35, stats.PagesRead)
	assert.Equal(t, 2, stats.DaysActive)

	all, err := env.stats.ForPeriod(ctx, domain.StatsPeriodAllTime)
	require.NoError(t, err)
	assert.Equal(t, 4, all.SessionCount)
	assert.Equal(t, 3, all.DaysActive)
}

func TestStatsForPeriodInvalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.stats.ForPeriod(context.Background(), domain.StatsPeriod("fortnight"))
	require.Error(t, err)
}

func TestStreak(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	// Sessions yesterday and today, a gap two days ago.
	env.setDay(2026, 8, 19)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")
	env.setDay(2026, 8, 20)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")

	streak, err := env.stats.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestStreakTodayEmptyDoesNotBreak(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	env.setDay(2026, 8, 18)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")
	env.setDay(2026, 8, 19)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")

	// It is now the 20th with no session yet; yesterday's run still counts.
	env.setDay(2026, 8, 20)
	streak, err := env.stats.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestStreakBrokenByGap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	env.setDay(2026, 8, 16)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")
	// Nothing on the 17th.
	env.setDay(2026, 8, 18)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")
	env.setDay(2026, 8, 19)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")
	env.setDay(2026, 8, 20)
	env.readFor(t, book.ID, 20*time.Minute, 5, "")

	streak, err := env.stats.Streak(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, streak)
}

func TestStreakEmpty(t *testing.T) {
	env := newTestEnv(t)

	streak, err := env.stats.Streak(context.Background())
	require.NoError(t, err)
	assert.Zero(t, streak)
}

func TestReadingSpeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	// 30 pages over a combined 90 minutes of qualifying reading.
	env.readFor(t, book.ID, 60*time.Minute, 20, "")
	env.readFor(t, book.ID, 30*time.Minute, 10, "")

	// Noise: too short, and no page progress.
	env.readFor(t, book.ID, 3*time.Minute, 2, "")
	env.readFor(t, book.ID, 45*time.Minute, 0, "")

	speed, err := env.stats.ReadingSpeed(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, speed, 0.001)
}

func TestReadingSpeedNoQualifyingSessions(t *testing.T) {
	env := newTestEnv(t)

	speed, err := env.stats.ReadingSpeed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, speed)
}

func TestTotals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)
	env.readFor(t, book.ID, 90*time.Minute, 40, "")
	env.readFor(t, book.ID, 30*time.Minute, 12, "")

	pages, err := env.stats.TotalPagesAllTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 52, pages)

	hours, err := env.stats.TotalHoursAllTime(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, hours, 0.001)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.addBook(t, "Dune", 412, 0)

	env.setDay(2026, 8, 18)
	env.readFor(t, book.ID, 30*time.Minute, 10, "")
	env.setDay(2026, 8, 20)
	env.readFor(t, book.ID, 45*time.Minute, 15, "")

	series, err := env.stats.History(ctx, 7)
	require.NoError(t, err)
	require.Len(t, series, 7)

	// Oldest first, today last, gaps zero-filled.
	assert.Equal(t, time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC), series[0].Date)
	assert.Zero(t, series[0].Minutes)

	assert.InDelta(t, 30.0, series[4].Minutes, 0.001)
	assert.Equal(t, 10, series[4].Pages)
	assert.Zero(t, series[5].Minutes)
	assert.InDelta(t, 45.0, series[6].Minutes, 0.001)
	assert.Equal(t, 15, series[6].Pages)
}

func TestHistoryInvalidDays(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.stats.History(context.Background(), 0)
	require.Error(t, err)
}
