package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

// EnrollmentService maintains the (student, course) enrollment ledger.
type EnrollmentService interface {
	Enroll(ctx context.Context, actor Actor, courseID uint) (dto.EnrollmentResponse, error)
	IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error)
	ListEnrollments(ctx context.Context, actor Actor) ([]dto.EnrollmentResponse, error)
}

type enrollmentService struct {
	store  *repository.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewEnrollmentService constructs the enrollment ledger.
func NewEnrollmentService(store *repository.Store, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		store:  store,
		logger: logger.With().Str("component", "enrollment_service").Logger(),
		now:    time.Now,
	}
}

// Enroll is idempotent: repeated or concurrent calls converge on one row and only the first reports created.
func (s *enrollmentService) Enroll(ctx context.Context, actor Actor, courseID uint) (dto.EnrollmentResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.EnrollmentResponse{}, err
	}

	course, err := s.store.Catalog.FindCourse(ctx, courseID)
	if err != nil {
		return dto.EnrollmentResponse{}, notFound(err, ErrCourseNotFound)
	}
	if !course.IsActive && !actor.SeesInactive() {
		return dto.EnrollmentResponse{}, ErrCourseNotFound
	}

	enrollment := models.Enrollment{StudentID: actor.ID, CourseID: courseID, EnrolledAt: s.now()}
	created, err := s.store.Enrollments.Enroll(ctx, &enrollment)
	if err != nil {
		return dto.EnrollmentResponse{}, fmt.Errorf("enroll student: %w", err)
	}
	enrollment.Course = course

	if created {
		s.logger.Info().Uint("student_id", actor.ID).Uint("course_id", courseID).Msg("student enrolled")
	}
	return dto.NewEnrollmentResponse(enrollment, created), nil
}

func (s *enrollmentService) IsEnrolled(ctx context.Context, studentID, courseID uint) (bool, error) {
	return s.store.Enrollments.Exists(ctx, studentID, courseID)
}

func (s *enrollmentService) ListEnrollments(ctx context.Context, actor Actor) ([]dto.EnrollmentResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return nil, err
	}

	enrollments, err := s.store.Enrollments.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, dto.NewEnrollmentResponse(enrollment, false))
	}
	return responses, nil
}
