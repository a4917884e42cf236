package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestApplyActivity(t *testing.T) {
	yesterday := day(2024, time.March, 9)
	today := day(2024, time.March, 10)
	longAgo := day(2024, time.March, 6)

	tests := []struct {
		name    string
		state   StreakState
		at      time.Time
		current int
		longest int
		outcome StreakOutcome
	}{
		{"first activity", StreakState{}, today, 1, 1, StreakStarted},
		{"consecutive day", StreakState{Current: 4, Longest: 4, LastActiveDate: &yesterday}, today, 5, 5, StreakExtended},
		{"keeps higher longest", StreakState{Current: 4, Longest: 9, LastActiveDate: &yesterday}, today, 5, 9, StreakExtended},
		{"same day", StreakState{Current: 5, Longest: 5, LastActiveDate: &today}, today, 5, 5, StreakUnchanged},
		{"gap resets", StreakState{Current: 7, Longest: 7, LastActiveDate: &longAgo}, today, 1, 7, StreakReset},
		{"earlier event ignored", StreakState{Current: 3, Longest: 3, LastActiveDate: &today}, yesterday, 3, 3, StreakUnchanged},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, outcome := ApplyActivity(tc.state, tc.at)
			require.Equal(t, tc.outcome, outcome)
			require.Equal(t, tc.current, next.Current)
			require.Equal(t, tc.longest, next.Longest)
			require.NotNil(t, next.LastActiveDate)
		})
	}
}

func TestRecordActivityTransitions(t *testing.T) {
	store := newTestStore(t)
	dashboard := &countingInvalidator{}
	svc := NewStreakService(store, time.UTC, dashboard, testLogger())
	ctx := context.Background()

	student := seedStudent(t, store, "Putri Ayu")
	yesterday := day(2024, time.May, 1)
	require.NoError(t, store.Students.UpdateStreak(ctx, student.ID, 4, 4, yesterday))

	morning := time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC)
	extended, err := svc.RecordActivity(ctx, student.ID, morning)
	require.NoError(t, err)
	require.Equal(t, string(StreakExtended), extended.Outcome)
	require.Equal(t, 5, extended.CurrentStreak)
	require.Equal(t, 5, extended.LongestStreak)

	evening := time.Date(2024, time.May, 2, 21, 0, 0, 0, time.UTC)
	same, err := svc.RecordActivity(ctx, student.ID, evening)
	require.NoError(t, err)
	require.Equal(t, string(StreakUnchanged), same.Outcome)
	require.Equal(t, 5, same.CurrentStreak)

	later := time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)
	reset, err := svc.RecordActivity(ctx, student.ID, later)
	require.NoError(t, err)
	require.Equal(t, string(StreakReset), reset.Outcome)
	require.Equal(t, 1, reset.CurrentStreak)
	require.Equal(t, 5, reset.LongestStreak)

	stored, err := store.Students.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.CurrentStreak)
	require.Equal(t, 5, stored.LongestStreak)
	require.Equal(t, "2024-05-06", stored.LastActiveDate.Format("2006-01-02"))
}

func TestRecordActivityUsesConfiguredTimezone(t *testing.T) {
	store := newTestStore(t)
	jakarta := time.FixedZone("WIB", 7*60*60)
	svc := NewStreakService(store, jakarta, nil, testLogger())
	ctx := context.Background()
	student := seedStudent(t, store, "Rizky Ramadhan")

	// 18:30 UTC on the 1st is already the 2nd in UTC+7.
	response, err := svc.RecordActivity(ctx, student.ID, time.Date(2024, time.June, 1, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, string(StreakStarted), response.Outcome)

	stored, err := store.Students.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, "2024-06-02", stored.LastActiveDate.Format("2006-01-02"))
}

func TestSessionsDriveStreak(t *testing.T) {
	store := newTestStore(t)
	dashboard := &countingInvalidator{}
	svc := NewStreakService(store, time.UTC, dashboard, testLogger()).(*streakService)
	ctx := context.Background()
	student := seedStudent(t, store, "Sinta Maharani")
	actor := studentActor(student)

	now := time.Date(2024, time.July, 3, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.EndSession(ctx, actor)
	require.ErrorIs(t, err, ErrSessionNotFound)

	started, err := svc.StartSession(ctx, actor)
	require.NoError(t, err)
	require.NotNil(t, started.Streak)
	require.Equal(t, 1, started.Streak.CurrentStreak)
	require.Nil(t, started.LogoutTime)

	now = now.Add(45 * time.Minute)
	ended, err := svc.EndSession(ctx, actor)
	require.NoError(t, err)
	require.NotNil(t, ended.LogoutTime)
	require.Equal(t, 45, ended.Minutes)

	streak, err := svc.Streak(ctx, actor)
	require.NoError(t, err)
	require.True(t, streak.ActiveToday)
	require.Equal(t, 1, streak.CurrentStreak)

	now = now.Add(72 * time.Hour)
	broken, err := svc.Streak(ctx, actor)
	require.NoError(t, err)
	require.Zero(t, broken.CurrentStreak)
	require.Equal(t, 1, broken.LongestStreak)
	require.False(t, broken.ActiveToday)

	require.Equal(t, 2, dashboard.calls[student.ID])
}

func TestRecordActivityUnknownStudent(t *testing.T) {
	store := newTestStore(t)
	svc := NewStreakService(store, time.UTC, nil, testLogger())

	_, err := svc.RecordActivity(context.Background(), 777, time.Now())
	require.ErrorIs(t, err, ErrStudentNotFound)
}
