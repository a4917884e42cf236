package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// CompletionCount reports completed active lessons against all active lessons of a course.
type CompletionCount struct {
	Completed int64
	Total     int64
}

// ProgressRepository persists lesson progress and course completions.
type ProgressRepository interface {
	Get(ctx context.Context, studentID, lessonID uint) (models.LessonProgress, error)
	Ensure(ctx context.Context, studentID, lessonID uint) (models.LessonProgress, error)
	MarkCompleted(ctx context.Context, studentID, lessonID uint, at time.Time) (bool, error)
	CountCourseCompletion(ctx context.Context, studentID, courseID uint) (CompletionCount, error)
	ListForCourse(ctx context.Context, studentID, courseID uint) ([]models.LessonProgress, error)
	CreateCourseCompletion(ctx context.Context, completion *models.CourseCompletion) (bool, error)
	GetCourseCompletion(ctx context.Context, studentID, courseID uint) (models.CourseCompletion, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository constructs the progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Get(ctx context.Context, studentID, lessonID uint) (models.LessonProgress, error) {
	var progress models.LessonProgress
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		First(&progress).Error; err != nil {
		return models.LessonProgress{}, err
	}
	return progress, nil
}

// Ensure returns the existing progress row or creates an incomplete one.
// Concurrent callers converge on the same row through the unique index.
func (r *progressRepository) Ensure(ctx context.Context, studentID, lessonID uint) (models.LessonProgress, error) {
	progress := models.LessonProgress{StudentID: studentID, LessonID: lessonID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(&progress).Error; err != nil {
		return models.LessonProgress{}, err
	}

	return r.Get(ctx, studentID, lessonID)
}

// MarkCompleted flips completed from false to true. It reports false when the row was
// already completed, which is how a duplicate or concurrent completion is detected.
func (r *progressRepository) MarkCompleted(ctx context.Context, studentID, lessonID uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.LessonProgress{}).
		Where("student_id = ? AND lesson_id = ? AND completed = ?", studentID, lessonID, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *progressRepository) CountCourseCompletion(ctx context.Context, studentID, courseID uint) (CompletionCount, error) {
	var counts CompletionCount

	if err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Where("course_id = ? AND is_active = ?", courseID, true).
		Count(&counts.Total).Error; err != nil {
		return CompletionCount{}, err
	}

	if err := r.db.WithContext(ctx).Model(&models.LessonProgress{}).
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Where("lesson_progress.student_id = ?", studentID).
		Where("lesson_progress.completed = ?", true).
		Where("lessons.course_id = ? AND lessons.is_active = ?", courseID, true).
		Count(&counts.Completed).Error; err != nil {
		return CompletionCount{}, err
	}

	return counts, nil
}

func (r *progressRepository) ListForCourse(ctx context.Context, studentID, courseID uint) ([]models.LessonProgress, error) {
	var rows []models.LessonProgress
	if err := r.db.WithContext(ctx).
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Where("lesson_progress.student_id = ?", studentID).
		Where("lessons.course_id = ?", courseID).
		Order("lessons.lesson_order ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateCourseCompletion inserts the completion fact once. The flag reports whether this call won.
func (r *progressRepository) CreateCourseCompletion(ctx context.Context, completion *models.CourseCompletion) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(completion)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *progressRepository) GetCourseCompletion(ctx context.Context, studentID, courseID uint) (models.CourseCompletion, error) {
	var completion models.CourseCompletion
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&completion).Error; err != nil {
		return models.CourseCompletion{}, err
	}
	return completion, nil
}
