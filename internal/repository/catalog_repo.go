package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// CatalogFilter controls course visibility.
type CatalogFilter struct {
	IncludeInactive bool
}

// CatalogRepository exposes course and lesson persistence helpers.
type CatalogRepository interface {
	ListCourses(ctx context.Context, filter CatalogFilter) ([]models.Course, error)
	GetCourse(ctx context.Context, id uint, filter CatalogFilter) (models.Course, error)
	FindCourse(ctx context.Context, id uint) (models.Course, error)
	CreateCourse(ctx context.Context, course *models.Course) error
	UpdateCourse(ctx context.Context, id uint, updates map[string]interface{}) (models.Course, error)
	GetLesson(ctx context.Context, id uint) (models.Lesson, error)
	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	SetLessonActive(ctx context.Context, id uint, active bool) (models.Lesson, error)
	LessonOrderTaken(ctx context.Context, courseID uint, order int) (bool, error)
	CountActiveLessons(ctx context.Context, courseID uint) (int64, error)
	ActiveLessonCounts(ctx context.Context, courseIDs []uint) (map[uint]int64, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository constructs a catalog repository.
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListCourses(ctx context.Context, filter CatalogFilter) ([]models.Course, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})
	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}

	var courses []models.Course
	if err := query.Order("created_at DESC").Order("id DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *catalogRepository) GetCourse(ctx context.Context, id uint, filter CatalogFilter) (models.Course, error) {
	query := r.db.WithContext(ctx).Preload("Lessons", func(db *gorm.DB) *gorm.DB {
		if !filter.IncludeInactive {
			db = db.Where("is_active = ?", true)
		}
		return db.Order("lesson_order ASC")
	})
	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}

	var course models.Course
	if err := query.First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

// FindCourse loads a course without its lessons, regardless of visibility.
func (r *catalogRepository) FindCourse(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *catalogRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *catalogRepository) UpdateCourse(ctx context.Context, id uint, updates map[string]interface{}) (models.Course, error) {
	result := r.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return models.Course{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Course{}, gorm.ErrRecordNotFound
	}

	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *catalogRepository) GetLesson(ctx context.Context, id uint) (models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (r *catalogRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	return r.db.WithContext(ctx).Create(lesson).Error
}

func (r *catalogRepository) SetLessonActive(ctx context.Context, id uint, active bool) (models.Lesson, error) {
	result := r.db.WithContext(ctx).Model(&models.Lesson{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return models.Lesson{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.Lesson{}, gorm.ErrRecordNotFound
	}
	return r.GetLesson(ctx, id)
}

func (r *catalogRepository) LessonOrderTaken(ctx context.Context, courseID uint, order int) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Where("course_id = ? AND lesson_order = ?", courseID, order).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *catalogRepository) CountActiveLessons(ctx context.Context, courseID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Where("course_id = ? AND is_active = ?", courseID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *catalogRepository) ActiveLessonCounts(ctx context.Context, courseIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		CourseID uint
		Total    int64
	}
	if err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Select("course_id, COUNT(*) AS total").
		Where("course_id IN ? AND is_active = ?", courseIDs, true).
		Group("course_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.CourseID] = row.Total
	}
	return counts, nil
}
