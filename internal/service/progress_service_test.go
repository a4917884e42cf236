package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/repository"
	"github.com/noah-isme/brainboost-api/pkg/events"
)

type progressFixture struct {
	db        *gorm.DB
	store     *repository.Store
	progress  ProgressService
	rewards   RewardService
	publisher *recordingPublisher
	dashboard *countingInvalidator
}

func newProgressFixture(t *testing.T) progressFixture {
	t.Helper()
	db := newTestDB(t)
	store := repository.NewStore(db)
	publisher := &recordingPublisher{}
	dashboard := &countingInvalidator{}
	rewards := NewRewardService(store, nil, publisher, nil, newValidator(), 10, testLogger())
	progress := NewProgressService(store, rewards, publisher, dashboard, 10, testLogger())
	return progressFixture{db: db, store: store, progress: progress, rewards: rewards, publisher: publisher, dashboard: dashboard}
}

func TestCompleteLessonRequiresEnrollment(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Ayu Lestari")
	course := seedCourse(t, fx.store, "Go Basics", true)
	lesson := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)

	_, err := fx.progress.CompleteLesson(ctx, studentActor(student), lesson.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = fx.store.Progress.Get(ctx, student.ID, lesson.ID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound), "no progress row expected")
	require.Empty(t, fx.publisher.events)
}

func TestCompleteLessonIsIdempotent(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Budi Santoso")
	course := seedCourse(t, fx.store, "Go Basics", true)
	lesson := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)

	first, err := fx.progress.CompleteLesson(ctx, studentActor(student), lesson.ID)
	require.NoError(t, err)
	require.Equal(t, dto.CompletionStatusNew, first.Status)
	require.Equal(t, 10, first.PointsAwarded)
	require.Equal(t, 10, first.TotalPoints)
	require.NotNil(t, first.CompletedAt)
	require.False(t, first.CourseCompleted)

	second, err := fx.progress.CompleteLesson(ctx, studentActor(student), lesson.ID)
	require.NoError(t, err)
	require.Equal(t, dto.CompletionStatusAlready, second.Status)
	require.Zero(t, second.PointsAwarded)
	require.Equal(t, 10, second.TotalPoints)
	require.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix())

	points, err := fx.store.Rewards.GetPoints(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 10, points.TotalPoints)

	var completedRows int64
	require.NoError(t, fx.db.Model(&models.LessonProgress{}).
		Where("student_id = ? AND lesson_id = ? AND completed = ?", student.ID, lesson.ID, true).
		Count(&completedRows).Error)
	require.Equal(t, int64(1), completedRows)

	require.Equal(t, 1, fx.publisher.count(events.LessonCompleted))
	require.Equal(t, 1, fx.dashboard.calls[student.ID])
}

func TestCourseCompletionCountsOnlyActiveLessons(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Citra Dewi")
	course := seedCourse(t, fx.store, "Databases", true)
	active := []models.Lesson{
		seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo),
		seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo),
		seedLesson(t, fx.store, course.ID, 3, models.ContentTypeVideo),
	}
	inactive := seedLesson(t, fx.store, course.ID, 4, models.ContentTypeVideo)
	_, err := fx.store.Catalog.SetLessonActive(ctx, inactive.ID, false)
	require.NoError(t, err)
	seedEnrollment(t, fx.store, student.ID, course.ID)

	actor := studentActor(student)
	for _, lesson := range active[:2] {
		result, err := fx.progress.CompleteLesson(ctx, actor, lesson.ID)
		require.NoError(t, err)
		require.False(t, result.CourseCompleted)
	}

	done, err := fx.progress.CourseCompletionCheck(ctx, actor, course.ID)
	require.NoError(t, err)
	require.False(t, done)
	_, err = fx.store.Progress.GetCourseCompletion(ctx, student.ID, course.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	last, err := fx.progress.CompleteLesson(ctx, actor, active[2].ID)
	require.NoError(t, err)
	require.True(t, last.CourseCompleted)

	done, err = fx.progress.CourseCompletionCheck(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, done)

	var completions int64
	require.NoError(t, fx.db.Model(&models.CourseCompletion{}).
		Where("student_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&completions).Error)
	require.Equal(t, int64(1), completions)
	require.Equal(t, 1, fx.publisher.count(events.CourseCompleted))

	report, err := fx.progress.CourseProgress(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, report.Enrolled)
	require.True(t, report.Completed)
	require.Equal(t, int64(3), report.TotalLessons)
	require.Equal(t, int64(3), report.CompletedLessons)
	require.Equal(t, 100, report.Percentage)
	require.Len(t, report.Lessons, 3)
}

func TestCourseCompletionSurvivesNewLessons(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Dimas Putra")
	course := seedCourse(t, fx.store, "Networking", true)
	lesson := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)

	actor := studentActor(student)
	result, err := fx.progress.CompleteLesson(ctx, actor, lesson.ID)
	require.NoError(t, err)
	require.True(t, result.CourseCompleted)

	seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)

	done, err := fx.progress.CourseCompletionCheck(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, done)

	report, err := fx.progress.CourseProgress(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, report.Completed)
	require.Equal(t, 50, report.Percentage)
}

func TestViewLessonCompletesPDFOnly(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Eka Saputra")
	course := seedCourse(t, fx.store, "Security", true)
	pdf := seedLesson(t, fx.store, course.ID, 1, models.ContentTypePDF)
	video := seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)
	actor := studentActor(student)

	viewed, err := fx.progress.ViewLesson(ctx, actor, pdf.ID)
	require.NoError(t, err)
	require.True(t, viewed.Progress.Completed)
	require.NotNil(t, viewed.Completion)
	require.Equal(t, dto.CompletionStatusNew, viewed.Completion.Status)

	again, err := fx.progress.ViewLesson(ctx, actor, pdf.ID)
	require.NoError(t, err)
	require.True(t, again.Progress.Completed)
	require.Nil(t, again.Completion)

	watched, err := fx.progress.ViewLesson(ctx, actor, video.ID)
	require.NoError(t, err)
	require.False(t, watched.Progress.Completed)
	require.Nil(t, watched.Completion)

	points, err := fx.store.Rewards.GetPoints(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 10, points.TotalPoints)
}

func TestHiddenLessonsAreNotFoundForStudents(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Fajar Nugroho")
	course := seedCourse(t, fx.store, "Hidden", false)
	lesson := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)

	_, err := fx.progress.CompleteLesson(ctx, studentActor(student), lesson.ID)
	require.ErrorIs(t, err, ErrLessonNotFound)

	_, err = fx.progress.CompleteLesson(ctx, studentActor(student), 9999)
	require.ErrorIs(t, err, ErrLessonNotFound)
}

func TestMarkIncompleteIsRejected(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Gita Pratiwi")
	course := seedCourse(t, fx.store, "Algorithms", true)
	lesson := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)

	_, err := fx.progress.CompleteLesson(ctx, studentActor(student), lesson.ID)
	require.NoError(t, err)

	err = fx.progress.MarkIncomplete(ctx, studentActor(student), lesson.ID)
	require.ErrorIs(t, err, ErrProgressRegression)

	row, err := fx.store.Progress.Get(ctx, student.ID, lesson.ID)
	require.NoError(t, err)
	require.True(t, row.Completed)
}

func TestEnsureProgressCreatesIncompleteRow(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Hana Wijaya")
	course := seedCourse(t, fx.store, "Compilers", true)
	lesson := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)

	first, err := fx.progress.EnsureProgress(ctx, studentActor(student), lesson.ID)
	require.NoError(t, err)
	require.False(t, first.Completed)

	second, err := fx.progress.EnsureProgress(ctx, studentActor(student), lesson.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDeactivatingLastLessonCompletesCourse(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()
	certificates := NewCertificateService(fx.store, time.UTC, testLogger())

	student := seedStudent(t, fx.store, "Intan Permata")
	course := seedCourse(t, fx.store, "Cloud Native", true)
	done := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	pending := seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)
	actor := studentActor(student)

	first, err := fx.progress.CompleteLesson(ctx, actor, done.ID)
	require.NoError(t, err)
	require.False(t, first.CourseCompleted)

	_, err = fx.store.Catalog.SetLessonActive(ctx, pending.ID, false)
	require.NoError(t, err)

	again, err := fx.progress.CompleteLesson(ctx, actor, done.ID)
	require.NoError(t, err)
	require.Equal(t, dto.CompletionStatusAlready, again.Status)
	require.Zero(t, again.PointsAwarded)
	require.True(t, again.CourseCompleted)
	require.Equal(t, 1, fx.publisher.count(events.CourseCompleted))
	require.Equal(t, 1, fx.publisher.count(events.LessonCompleted))

	report, err := fx.progress.CourseProgress(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, report.Completed)
	require.Equal(t, 100, report.Percentage)

	eligibility, err := certificates.IsCertificateEligible(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, eligibility.Eligible)

	points, err := fx.store.Rewards.GetPoints(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 10, points.TotalPoints)
}

func TestCourseProgressSettlesPendingCompletion(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Joko Widodo")
	course := seedCourse(t, fx.store, "Kubernetes", true)
	done := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	pending := seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)
	actor := studentActor(student)

	_, err := fx.progress.CompleteLesson(ctx, actor, done.ID)
	require.NoError(t, err)
	_, err = fx.store.Catalog.SetLessonActive(ctx, pending.ID, false)
	require.NoError(t, err)

	report, err := fx.progress.CourseProgress(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, report.Completed)

	_, err = fx.store.Progress.GetCourseCompletion(ctx, student.ID, course.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fx.publisher.count(events.CourseCompleted))

	_, err = fx.progress.CourseProgress(ctx, actor, course.ID)
	require.NoError(t, err)
	require.Equal(t, 1, fx.publisher.count(events.CourseCompleted))
}

func TestConcurrentCompletionAwardsOnce(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Kartika Sari")
	course := seedCourse(t, fx.store, "Concurrency", true)
	first := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	last := seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)
	actor := studentActor(student)

	_, err := fx.progress.CompleteLesson(ctx, actor, first.ID)
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[string]int{}
		errs     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := fx.progress.CompleteLesson(ctx, actor, last.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			statuses[result.Status]++
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Equal(t, 1, statuses[dto.CompletionStatusNew])
	require.Equal(t, workers-1, statuses[dto.CompletionStatusAlready])

	points, err := fx.store.Rewards.GetPoints(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 20, points.TotalPoints)

	var completions int64
	require.NoError(t, fx.db.Model(&models.CourseCompletion{}).
		Where("student_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&completions).Error)
	require.Equal(t, int64(1), completions)
	require.Equal(t, 2, fx.publisher.count(events.LessonCompleted))
	require.Equal(t, 1, fx.publisher.count(events.CourseCompleted))
}

func TestParallelFinalLessonsCompleteCourseOnce(t *testing.T) {
	fx := newProgressFixture(t)
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Lina Marlina")
	course := seedCourse(t, fx.store, "Distributed Systems", true)
	lessons := []models.Lesson{
		seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo),
		seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo),
		seedLesson(t, fx.store, course.ID, 3, models.ContentTypeVideo),
	}
	seedEnrollment(t, fx.store, student.ID, course.ID)
	actor := studentActor(student)

	_, err := fx.progress.CompleteLesson(ctx, actor, lessons[0].ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]dto.LessonCompletionResponse, 2)
	errs := make([]error, 2)
	for i, lesson := range lessons[1:] {
		wg.Add(1)
		go func(i int, lessonID uint) {
			defer wg.Done()
			results[i], errs[i] = fx.progress.CompleteLesson(ctx, actor, lessonID)
		}(i, lesson.ID)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.True(t, results[0].CourseCompleted || results[1].CourseCompleted)

	var completions int64
	require.NoError(t, fx.db.Model(&models.CourseCompletion{}).
		Where("student_id = ? AND course_id = ?", student.ID, course.ID).
		Count(&completions).Error)
	require.Equal(t, int64(1), completions)
	require.Equal(t, 1, fx.publisher.count(events.CourseCompleted))

	points, err := fx.store.Rewards.GetPoints(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, 30, points.TotalPoints)
}
