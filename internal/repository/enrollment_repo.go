package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// EnrollmentRepository manages (student, course) enrollments.
type EnrollmentRepository interface {
	Enroll(ctx context.Context, enrollment *models.Enrollment) (bool, error)
	Get(ctx context.Context, studentID, courseID uint) (models.Enrollment, error)
	GetForUpdate(ctx context.Context, studentID, courseID uint) (models.Enrollment, error)
	Exists(ctx context.Context, studentID, courseID uint) (bool, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs the enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// Enroll inserts the enrollment unless one already exists. The returned flag reports
// whether this call created the row; enrollment is always populated with the stored row.
func (r *enrollmentRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(enrollment)
	if result.Error != nil {
		return false, result.Error
	}

	stored, err := r.Get(ctx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return false, err
	}
	*enrollment = stored

	return result.RowsAffected > 0, nil
}

func (r *enrollmentRepository) Get(ctx context.Context, studentID, courseID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

// GetForUpdate reads the enrollment holding a row lock until the surrounding transaction ends.
// Completion writes for one student and course queue behind this lock.
func (r *enrollmentRepository) GetForUpdate(ctx context.Context, studentID, courseID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}
	return enrollment, nil
}

func (r *enrollmentRepository) Exists(ctx context.Context, studentID, courseID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *enrollmentRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ?", studentID).
		Order("enrolled_at ASC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}
