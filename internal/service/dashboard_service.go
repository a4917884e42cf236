package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

const dashboardHistoryDays = 7

// DashboardService produces aggregated learning metrics for a student.
type DashboardService interface {
	GetDashboard(ctx context.Context, actor Actor) (dto.DashboardResponse, bool, error)
	Invalidate(ctx context.Context, studentID uint)
}

type dashboardService struct {
	store    *repository.Store
	cache    *redis.Client
	cacheTTL time.Duration
	location *time.Location
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDashboardService builds the dashboard aggregator. cache may be nil.
func NewDashboardService(store *repository.Store, cache *redis.Client, ttl time.Duration, location *time.Location, logger zerolog.Logger) DashboardService {
	if location == nil {
		location = time.Local
	}
	return &dashboardService{
		store:    store,
		cache:    cache,
		cacheTTL: ttl,
		location: location,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		now:      time.Now,
	}
}

func dashboardCacheKey(studentID uint) string {
	return fmt.Sprintf("dashboard:student:%d", studentID)
}

// GetDashboard returns the dashboard and whether it was served from cache.
func (s *dashboardService) GetDashboard(ctx context.Context, actor Actor) (dto.DashboardResponse, bool, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.DashboardResponse{}, false, err
	}
	cacheKey := dashboardCacheKey(actor.ID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", actor.ID).Msg("dashboard cache hit")
				return response, true, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	response, err := s.build(ctx, actor.ID)
	if err != nil {
		return dto.DashboardResponse{}, false, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, false, nil
}

func (s *dashboardService) Invalidate(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardCacheKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate dashboard cache")
	}
}

func (s *dashboardService) build(ctx context.Context, studentID uint) (dto.DashboardResponse, error) {
	student, err := s.store.Students.GetByID(ctx, studentID)
	if err != nil {
		return dto.DashboardResponse{}, notFound(err, ErrStudentNotFound)
	}

	enrollments, err := s.store.Enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	now := s.now()
	response := dto.DashboardResponse{
		StudentID:       studentID,
		EnrolledCourses: len(enrollments),
		Level:           1,
		Courses:         make([]dto.CourseProgressSummary, 0, len(enrollments)),
		GeneratedAt:     now.UTC(),
	}

	for _, enrollment := range enrollments {
		counts, err := s.store.Progress.CountCourseCompletion(ctx, studentID, enrollment.CourseID)
		if err != nil {
			return dto.DashboardResponse{}, err
		}

		completed := true
		if _, err := s.store.Progress.GetCourseCompletion(ctx, studentID, enrollment.CourseID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.DashboardResponse{}, err
			}
			completed = false
		}
		if completed {
			response.CompletedCourses++
		}

		response.TotalLessons += counts.Total
		response.CompletedLessons += counts.Completed
		response.Courses = append(response.Courses, dto.CourseProgressSummary{
			CourseID:         enrollment.CourseID,
			Title:            enrollment.Course.Title,
			CompletedLessons: counts.Completed,
			TotalLessons:     counts.Total,
			Percentage:       dto.Percentage(counts.Completed, counts.Total),
			Completed:        completed,
		})
	}
	response.ProgressPercentage = dto.Percentage(response.CompletedLessons, response.TotalLessons)

	points, err := s.store.Rewards.GetPoints(ctx, studentID)
	switch {
	case err == nil:
		response.TotalPoints = points.TotalPoints
		response.Level = points.Level
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.DashboardResponse{}, err
	}

	badges, err := s.store.Rewards.ListStudentBadges(ctx, studentID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	response.BadgeCount = len(badges)

	today := civilDate(now, s.location)
	response.LongestStreak = student.LongestStreak
	if student.LastActiveDate != nil && today.Sub(asCivilDate(*student.LastActiveDate)) <= 24*time.Hour {
		response.CurrentStreak = student.CurrentStreak
	}

	daily, err := s.dailyMinutes(ctx, studentID, now)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	response.DailyMinutes = daily
	if len(daily) > 0 {
		response.MinutesToday = daily[len(daily)-1].Minutes
	}

	return response, nil
}

// dailyMinutes sums session time per calendar day for the last week, oldest first.
// A session counts toward the day it started on.
func (s *dashboardService) dailyMinutes(ctx context.Context, studentID uint, now time.Time) ([]dto.DailyMinutes, error) {
	local := now.In(s.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location).AddDate(0, 0, -(dashboardHistoryDays - 1))

	sessions, err := s.store.Sessions.ListSince(ctx, studentID, start)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]time.Duration, dashboardHistoryDays)
	for _, session := range sessions {
		totals[sessionDay(session, s.location)] += session.Duration(now)
	}

	series := make([]dto.DailyMinutes, 0, dashboardHistoryDays)
	for i := 0; i < dashboardHistoryDays; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		series = append(series, dto.DailyMinutes{Date: day, Minutes: int(totals[day].Minutes())})
	}
	return series, nil
}

func sessionDay(session models.UserSession, location *time.Location) string {
	return session.LoginTime.In(location).Format("2006-01-02")
}
