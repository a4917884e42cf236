package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/observability"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

// StreakOutcome names the transition applied by an activity event.
type StreakOutcome string

// Streak transitions reported by RecordActivity.
const (
	StreakUnchanged StreakOutcome = "unchanged"
	StreakExtended  StreakOutcome = "extended"
	StreakReset     StreakOutcome = "reset"
	StreakStarted   StreakOutcome = "started"
)

// StreakState is the per-student streak ratchet.
type StreakState struct {
	Current        int
	Longest        int
	LastActiveDate *time.Time
}

// ApplyActivity moves state forward for an activity on day, a calendar date at midnight UTC.
// Activity dated before the last active date leaves the state untouched.
func ApplyActivity(state StreakState, day time.Time) (StreakState, StreakOutcome) {
	day = asCivilDate(day)

	if state.LastActiveDate == nil {
		next := StreakState{Current: 1, Longest: max(state.Longest, 1), LastActiveDate: &day}
		return next, StreakStarted
	}

	last := asCivilDate(*state.LastActiveDate)
	gap := int(day.Sub(last).Hours() / 24)

	switch {
	case gap <= 0:
		return state, StreakUnchanged
	case gap == 1:
		current := state.Current + 1
		return StreakState{Current: current, Longest: max(state.Longest, current), LastActiveDate: &day}, StreakExtended
	default:
		return StreakState{Current: 1, Longest: max(state.Longest, 1), LastActiveDate: &day}, StreakReset
	}
}

// StreakService records daily activity and login sessions.
type StreakService interface {
	RecordActivity(ctx context.Context, studentID uint, at time.Time) (dto.StreakResponse, error)
	StartSession(ctx context.Context, actor Actor) (dto.SessionResponse, error)
	EndSession(ctx context.Context, actor Actor) (dto.SessionResponse, error)
	Streak(ctx context.Context, actor Actor) (dto.StreakResponse, error)
}

// DashboardInvalidator drops cached dashboard data for a student.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context, studentID uint)
}

type streakService struct {
	store     *repository.Store
	location  *time.Location
	dashboard DashboardInvalidator
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStreakService constructs the streak tracker. Calendar dates are taken in location.
func NewStreakService(store *repository.Store, location *time.Location, dashboard DashboardInvalidator, logger zerolog.Logger) StreakService {
	if location == nil {
		location = time.Local
	}
	return &streakService{
		store:     store,
		location:  location,
		dashboard: dashboard,
		logger:    logger.With().Str("component", "streak_service").Logger(),
		now:       time.Now,
	}
}

func (s *streakService) RecordActivity(ctx context.Context, studentID uint, at time.Time) (dto.StreakResponse, error) {
	var response dto.StreakResponse
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		response, err = s.recordActivity(ctx, tx, studentID, at)
		return err
	})
	if err != nil {
		return dto.StreakResponse{}, err
	}
	return response, nil
}

// recordActivity holds the student row lock for the read-modify-write.
func (s *streakService) recordActivity(ctx context.Context, tx *repository.Store, studentID uint, at time.Time) (dto.StreakResponse, error) {
	student, err := tx.Students.GetForUpdate(ctx, studentID)
	if err != nil {
		return dto.StreakResponse{}, notFound(err, ErrStudentNotFound)
	}

	day := civilDate(at, s.location)
	next, outcome := ApplyActivity(StreakState{
		Current:        student.CurrentStreak,
		Longest:        student.LongestStreak,
		LastActiveDate: student.LastActiveDate,
	}, day)

	if outcome != StreakUnchanged {
		if err := tx.Students.UpdateStreak(ctx, studentID, next.Current, next.Longest, *next.LastActiveDate); err != nil {
			return dto.StreakResponse{}, fmt.Errorf("update streak: %w", err)
		}
		student.CurrentStreak = next.Current
		student.LongestStreak = next.Longest
		student.LastActiveDate = next.LastActiveDate
	}

	observability.StreakUpdates().WithLabelValues(string(outcome)).Inc()
	s.logger.Debug().Uint("student_id", studentID).Str("outcome", string(outcome)).Int("current", student.CurrentStreak).Msg("activity recorded")

	response := s.streakResponse(student, at)
	response.Outcome = string(outcome)
	return response, nil
}

func (s *streakService) StartSession(ctx context.Context, actor Actor) (dto.SessionResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.SessionResponse{}, err
	}

	now := s.now()
	var response dto.SessionResponse
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		streak, err := s.recordActivity(ctx, tx, actor.ID, now)
		if err != nil {
			return err
		}

		session := models.UserSession{StudentID: actor.ID, LoginTime: now}
		if err := tx.Sessions.Create(ctx, &session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}

		response = sessionResponse(session, now)
		response.Streak = &streak
		return nil
	})
	if err != nil {
		return dto.SessionResponse{}, err
	}

	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, actor.ID)
	}
	return response, nil
}

func (s *streakService) EndSession(ctx context.Context, actor Actor) (dto.SessionResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.SessionResponse{}, err
	}

	session, err := s.store.Sessions.LatestOpen(ctx, actor.ID)
	if err != nil {
		return dto.SessionResponse{}, notFound(err, ErrSessionNotFound)
	}

	now := s.now()
	if err := s.store.Sessions.Close(ctx, session.ID, now); err != nil {
		return dto.SessionResponse{}, notFound(err, ErrSessionNotFound)
	}
	session.LogoutTime = &now

	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, actor.ID)
	}
	return sessionResponse(session, now), nil
}

func (s *streakService) Streak(ctx context.Context, actor Actor) (dto.StreakResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.StreakResponse{}, err
	}

	student, err := s.store.Students.GetByID(ctx, actor.ID)
	if err != nil {
		return dto.StreakResponse{}, notFound(err, ErrStudentNotFound)
	}
	return s.streakResponse(student, s.now()), nil
}

// streakResponse reports the streak as seen at reference: a streak whose last active day is
// older than yesterday is broken and reads as zero until the next activity resets it.
func (s *streakService) streakResponse(student models.Student, reference time.Time) dto.StreakResponse {
	response := dto.StreakResponse{
		StudentID:     student.ID,
		CurrentStreak: student.CurrentStreak,
		LongestStreak: student.LongestStreak,
	}
	if student.LastActiveDate == nil {
		response.CurrentStreak = 0
		return response
	}

	last := asCivilDate(*student.LastActiveDate)
	today := civilDate(reference, s.location)
	response.LastActiveDate = last.Format("2006-01-02")
	response.ActiveToday = last.Equal(today)
	if today.Sub(last) > 24*time.Hour {
		response.CurrentStreak = 0
	}
	return response
}

func sessionResponse(session models.UserSession, reference time.Time) dto.SessionResponse {
	return dto.SessionResponse{
		ID:         session.ID,
		StudentID:  session.StudentID,
		LoginTime:  session.LoginTime,
		LogoutTime: session.LogoutTime,
		Minutes:    int(session.Duration(reference).Minutes()),
	}
}
