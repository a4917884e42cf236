package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/observability"
	"github.com/noah-isme/brainboost-api/internal/repository"
	"github.com/noah-isme/brainboost-api/pkg/events"
)

// ProgressService tracks lesson progress and derives course completion.
type ProgressService interface {
	EnsureProgress(ctx context.Context, actor Actor, lessonID uint) (dto.LessonProgressResponse, error)
	CompleteLesson(ctx context.Context, actor Actor, lessonID uint) (dto.LessonCompletionResponse, error)
	MarkIncomplete(ctx context.Context, actor Actor, lessonID uint) error
	ViewLesson(ctx context.Context, actor Actor, lessonID uint) (dto.LessonViewResponse, error)
	CourseCompletionCheck(ctx context.Context, actor Actor, courseID uint) (bool, error)
	CourseProgress(ctx context.Context, actor Actor, courseID uint) (dto.CourseProgressResponse, error)
}

type progressService struct {
	store        *repository.Store
	rewards      RewardService
	publisher    events.Publisher
	dashboard    DashboardInvalidator
	lessonPoints int
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewProgressService constructs the progress tracker. Completing a lesson awards lessonPoints through rewards.
func NewProgressService(store *repository.Store, rewards RewardService, publisher events.Publisher, dashboard DashboardInvalidator, lessonPoints int, logger zerolog.Logger) ProgressService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if lessonPoints <= 0 {
		lessonPoints = 10
	}
	return &progressService{
		store:        store,
		rewards:      rewards,
		publisher:    publisher,
		dashboard:    dashboard,
		lessonPoints: lessonPoints,
		logger:       logger.With().Str("component", "progress_service").Logger(),
		tracer:       otel.Tracer(tracerName + "/progress"),
		now:          time.Now,
	}
}

// completionOutcome collects what a completion transaction did so side effects run after commit.
type completionOutcome struct {
	status          string
	progress        models.LessonProgress
	award           *AwardResult
	courseCompleted bool
	events          []events.Event
}

func (s *progressService) EnsureProgress(ctx context.Context, actor Actor, lessonID uint) (dto.LessonProgressResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.LessonProgressResponse{}, err
	}

	lesson, err := s.visibleLesson(ctx, actor, lessonID)
	if err != nil {
		return dto.LessonProgressResponse{}, err
	}
	if err := s.requireEnrollment(ctx, s.store, actor.ID, lesson.CourseID); err != nil {
		return dto.LessonProgressResponse{}, err
	}

	progress, err := s.store.Progress.Ensure(ctx, actor.ID, lesson.ID)
	if err != nil {
		return dto.LessonProgressResponse{}, fmt.Errorf("ensure progress: %w", err)
	}
	return dto.NewLessonProgressResponse(progress), nil
}

// CompleteLesson marks the lesson completed at most once per student. The winner of the
// completed=false→true update awards points. Every call re-evaluates course completion so a
// course whose remaining lessons were deactivated still completes; repeat calls award nothing.
func (s *progressService) CompleteLesson(ctx context.Context, actor Actor, lessonID uint) (dto.LessonCompletionResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.LessonCompletionResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "progress.complete_lesson")
	defer span.End()
	span.SetAttributes(attribute.Int("progress.student_id", int(actor.ID)), attribute.Int("progress.lesson_id", int(lessonID)))

	lesson, err := s.visibleLesson(ctx, actor, lessonID)
	if err != nil {
		failSpan(span, err, "lesson_lookup_failed")
		return dto.LessonCompletionResponse{}, err
	}

	var outcome completionOutcome
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		outcome = completionOutcome{}

		if err := s.lockEnrollment(ctx, tx, actor.ID, lesson.CourseID); err != nil {
			return err
		}
		if _, err := tx.Progress.Ensure(ctx, actor.ID, lesson.ID); err != nil {
			return fmt.Errorf("ensure progress: %w", err)
		}

		now := s.now()
		won, err := tx.Progress.MarkCompleted(ctx, actor.ID, lesson.ID, now)
		if err != nil {
			return fmt.Errorf("mark lesson completed: %w", err)
		}

		progress, err := tx.Progress.Get(ctx, actor.ID, lesson.ID)
		if err != nil {
			return err
		}
		outcome.progress = progress

		if won {
			outcome.status = dto.CompletionStatusNew
			completed := events.New(events.LessonCompleted, actor.ID, now)
			completed.LessonID = lesson.ID
			completed.CourseID = lesson.CourseID
			completed.Points = s.lessonPoints
			outcome.events = append(outcome.events, completed)

			award, err := s.rewards.AwardPointsTx(ctx, tx, actor.ID, s.lessonPoints)
			if err != nil {
				return err
			}
			outcome.award = &award
		} else {
			outcome.status = dto.CompletionStatusAlready
		}

		courseDone, created, err := s.checkCourseCompletion(ctx, tx, actor.ID, lesson.CourseID, now)
		if err != nil {
			return err
		}
		outcome.courseCompleted = courseDone
		if created {
			courseEvent := events.New(events.CourseCompleted, actor.ID, now)
			courseEvent.CourseID = lesson.CourseID
			outcome.events = append(outcome.events, courseEvent)
		}
		return nil
	})
	if err != nil {
		failSpan(span, err, "completion_failed")
		return dto.LessonCompletionResponse{}, err
	}

	span.SetAttributes(attribute.String("progress.status", outcome.status), attribute.Bool("progress.course_completed", outcome.courseCompleted))
	span.SetStatus(codes.Ok, outcome.status)

	s.afterCommit(ctx, actor.ID, outcome)
	return s.completionResponse(ctx, lesson, outcome)
}

// MarkIncomplete exists so callers get an explicit refusal: completion is monotonic.
func (s *progressService) MarkIncomplete(ctx context.Context, actor Actor, lessonID uint) error {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return err
	}
	if _, err := s.visibleLesson(ctx, actor, lessonID); err != nil {
		return err
	}
	return ErrProgressRegression
}

// ViewLesson opens a lesson for a student. Opening a PDF lesson completes it; video lessons
// need the explicit completion action.
func (s *progressService) ViewLesson(ctx context.Context, actor Actor, lessonID uint) (dto.LessonViewResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.LessonViewResponse{}, err
	}

	lesson, err := s.visibleLesson(ctx, actor, lessonID)
	if err != nil {
		return dto.LessonViewResponse{}, err
	}
	if err := s.requireEnrollment(ctx, s.store, actor.ID, lesson.CourseID); err != nil {
		return dto.LessonViewResponse{}, err
	}

	progress, err := s.store.Progress.Ensure(ctx, actor.ID, lesson.ID)
	if err != nil {
		return dto.LessonViewResponse{}, fmt.Errorf("ensure progress: %w", err)
	}

	response := dto.LessonViewResponse{
		Lesson:   dto.NewLessonResponse(lesson),
		Progress: dto.NewLessonProgressResponse(progress),
	}

	if lesson.CompletesOnView() && !progress.Completed {
		completion, err := s.CompleteLesson(ctx, actor, lesson.ID)
		if err != nil {
			return dto.LessonViewResponse{}, err
		}
		response.Completion = &completion
		response.Progress = dto.LessonProgressResponse{
			LessonID:    lesson.ID,
			Completed:   true,
			CompletedAt: completion.CompletedAt,
		}
	}

	quiz, err := s.store.Quizzes.GetByLesson(ctx, lesson.ID)
	switch {
	case err == nil:
		response.QuizID = &quiz.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.LessonViewResponse{}, err
	}

	return response, nil
}

func (s *progressService) CourseCompletionCheck(ctx context.Context, actor Actor, courseID uint) (bool, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return false, err
	}
	if _, err := s.store.Catalog.FindCourse(ctx, courseID); err != nil {
		return false, notFound(err, ErrCourseNotFound)
	}

	var (
		complete bool
		outcome  completionOutcome
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		outcome = completionOutcome{}
		if err := s.lockEnrollment(ctx, tx, actor.ID, courseID); err != nil {
			return err
		}

		now := s.now()
		done, created, err := s.checkCourseCompletion(ctx, tx, actor.ID, courseID, now)
		if err != nil {
			return err
		}
		complete = done
		if created {
			courseEvent := events.New(events.CourseCompleted, actor.ID, now)
			courseEvent.CourseID = courseID
			outcome.events = append(outcome.events, courseEvent)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.afterCommit(ctx, actor.ID, outcome)
	return complete, nil
}

// checkCourseCompletion compares completed active lessons with all active lessons. When they match
// the completion fact is inserted once; created reports whether this call inserted it. A completion
// recorded earlier stays valid even if lessons were added since.
func (s *progressService) checkCourseCompletion(ctx context.Context, tx *repository.Store, studentID, courseID uint, at time.Time) (complete bool, created bool, err error) {
	counts, err := tx.Progress.CountCourseCompletion(ctx, studentID, courseID)
	if err != nil {
		return false, false, fmt.Errorf("count course completion: %w", err)
	}

	if counts.Total == 0 || counts.Completed < counts.Total {
		_, err := tx.Progress.GetCourseCompletion(ctx, studentID, courseID)
		switch {
		case err == nil:
			return true, false, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			return false, false, nil
		default:
			return false, false, err
		}
	}

	created, err = tx.Progress.CreateCourseCompletion(ctx, &models.CourseCompletion{
		StudentID:   studentID,
		CourseID:    courseID,
		CompletedAt: at,
	})
	if err != nil {
		return false, false, fmt.Errorf("create course completion: %w", err)
	}
	return true, created, nil
}

func (s *progressService) CourseProgress(ctx context.Context, actor Actor, courseID uint) (dto.CourseProgressResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.CourseProgressResponse{}, err
	}

	course, err := s.store.Catalog.GetCourse(ctx, courseID, repository.CatalogFilter{IncludeInactive: actor.SeesInactive()})
	if err != nil {
		return dto.CourseProgressResponse{}, notFound(err, ErrCourseNotFound)
	}

	enrolled, err := s.store.Enrollments.Exists(ctx, actor.ID, courseID)
	if err != nil {
		return dto.CourseProgressResponse{}, err
	}

	counts, err := s.store.Progress.CountCourseCompletion(ctx, actor.ID, courseID)
	if err != nil {
		return dto.CourseProgressResponse{}, err
	}

	rows, err := s.store.Progress.ListForCourse(ctx, actor.ID, courseID)
	if err != nil {
		return dto.CourseProgressResponse{}, err
	}
	byLesson := make(map[uint]models.LessonProgress, len(rows))
	for _, row := range rows {
		byLesson[row.LessonID] = row
	}

	completed := false
	if _, err := s.store.Progress.GetCourseCompletion(ctx, actor.ID, courseID); err == nil {
		completed = true
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CourseProgressResponse{}, err
	}
	// Deactivating the last unfinished lesson completes the course on the next read.
	if enrolled && !completed && counts.Total > 0 && counts.Completed >= counts.Total {
		completed, err = s.CourseCompletionCheck(ctx, actor, courseID)
		if err != nil {
			return dto.CourseProgressResponse{}, err
		}
	}

	lessons := make([]dto.LessonProgressItem, 0, len(course.Lessons))
	for _, lesson := range course.Lessons {
		item := dto.LessonProgressItem{
			LessonID:    lesson.ID,
			Title:       lesson.Title,
			Order:       lesson.Order,
			ContentType: lesson.ContentType,
		}
		if row, ok := byLesson[lesson.ID]; ok {
			item.Completed = row.Completed
			item.CompletedAt = row.CompletedAt
		}
		lessons = append(lessons, item)
	}

	return dto.CourseProgressResponse{
		CourseID:         courseID,
		Enrolled:         enrolled,
		CompletedLessons: counts.Completed,
		TotalLessons:     counts.Total,
		Percentage:       dto.Percentage(counts.Completed, counts.Total),
		Completed:        completed,
		Lessons:          lessons,
	}, nil
}

// visibleLesson loads a lesson; students cannot see inactive lessons or lessons of inactive courses.
func (s *progressService) visibleLesson(ctx context.Context, actor Actor, lessonID uint) (models.Lesson, error) {
	lesson, err := s.store.Catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return models.Lesson{}, notFound(err, ErrLessonNotFound)
	}
	if actor.SeesInactive() {
		return lesson, nil
	}
	if !lesson.IsActive {
		return models.Lesson{}, ErrLessonNotFound
	}

	course, err := s.store.Catalog.FindCourse(ctx, lesson.CourseID)
	if err != nil {
		return models.Lesson{}, notFound(err, ErrLessonNotFound)
	}
	if !course.IsActive {
		return models.Lesson{}, ErrLessonNotFound
	}
	return lesson, nil
}

func (s *progressService) requireEnrollment(ctx context.Context, store *repository.Store, studentID, courseID uint) error {
	enrolled, err := store.Enrollments.Exists(ctx, studentID, courseID)
	if err != nil {
		return fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

// lockEnrollment checks enrollment inside tx and holds the row lock, so concurrent completions
// by one student in one course see each other's writes when counting.
func (s *progressService) lockEnrollment(ctx context.Context, tx *repository.Store, studentID, courseID uint) error {
	if _, err := tx.Enrollments.GetForUpdate(ctx, studentID, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}
	return nil
}

// afterCommit publishes events and runs award side effects. Failures are logged only.
func (s *progressService) afterCommit(ctx context.Context, studentID uint, outcome completionOutcome) {
	for _, event := range outcome.events {
		switch event.Type {
		case events.LessonCompleted:
			observability.LessonsCompleted().Inc()
		case events.CourseCompleted:
			observability.CoursesCompleted().Inc()
			s.logger.Info().Uint("student_id", studentID).Uint("course_id", event.CourseID).Msg("course completed")
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("event", string(event.Type)).Uint("student_id", studentID).Msg("failed to publish progress event")
		}
	}

	if outcome.award != nil {
		s.rewards.Announce(ctx, *outcome.award)
	}
	if s.dashboard != nil && len(outcome.events) > 0 {
		s.dashboard.Invalidate(ctx, studentID)
	}
}

func (s *progressService) completionResponse(ctx context.Context, lesson models.Lesson, outcome completionOutcome) (dto.LessonCompletionResponse, error) {
	response := dto.LessonCompletionResponse{
		LessonID:        lesson.ID,
		CourseID:        lesson.CourseID,
		Status:          outcome.status,
		CompletedAt:     outcome.progress.CompletedAt,
		UnlockedBadges:  []dto.BadgeResponse{},
		CourseCompleted: outcome.courseCompleted,
	}

	if outcome.award != nil {
		response.PointsAwarded = outcome.award.Amount
		response.TotalPoints = outcome.award.Points.TotalPoints
		response.Level = outcome.award.Points.Level
		response.UnlockedBadges = dto.NewBadgeResponses(outcome.award.Unlocked)
		return response, nil
	}

	points, err := s.store.Rewards.GetPoints(ctx, outcome.progress.StudentID)
	switch {
	case err == nil:
		response.TotalPoints = points.TotalPoints
		response.Level = points.Level
	case errors.Is(err, gorm.ErrRecordNotFound):
		response.Level = 1
	default:
		return dto.LessonCompletionResponse{}, err
	}
	return response, nil
}
