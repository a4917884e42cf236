package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

// certificateNamespace scopes certificate numbers so the same (student, course) pair always maps to one number.
var certificateNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://brainboost.app/certificates"))

// CertificateService gates certificate issuance on course completion.
type CertificateService interface {
	IsCertificateEligible(ctx context.Context, actor Actor, courseID uint) (dto.CertificateEligibilityResponse, error)
	IssueCertificate(ctx context.Context, actor Actor, courseID uint) (dto.CertificateData, error)
}

type certificateService struct {
	store    *repository.Store
	location *time.Location
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCertificateService constructs the completion gate.
func NewCertificateService(store *repository.Store, location *time.Location, logger zerolog.Logger) CertificateService {
	if location == nil {
		location = time.Local
	}
	return &certificateService{
		store:    store,
		location: location,
		logger:   logger.With().Str("component", "certificate_service").Logger(),
		tracer:   otel.Tracer(tracerName + "/certificate"),
		now:      time.Now,
	}
}

func (s *certificateService) IsCertificateEligible(ctx context.Context, actor Actor, courseID uint) (dto.CertificateEligibilityResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.CertificateEligibilityResponse{}, err
	}
	if _, err := s.store.Catalog.FindCourse(ctx, courseID); err != nil {
		return dto.CertificateEligibilityResponse{}, notFound(err, ErrCourseNotFound)
	}

	_, err := s.store.Progress.GetCourseCompletion(ctx, actor.ID, courseID)
	switch {
	case err == nil:
		return dto.CertificateEligibilityResponse{CourseID: courseID, Eligible: true}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return dto.CertificateEligibilityResponse{CourseID: courseID, Eligible: false}, nil
	default:
		return dto.CertificateEligibilityResponse{}, err
	}
}

func (s *certificateService) IssueCertificate(ctx context.Context, actor Actor, courseID uint) (dto.CertificateData, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.CertificateData{}, err
	}

	ctx, span := s.tracer.Start(ctx, "certificate.issue")
	defer span.End()
	span.SetAttributes(attribute.Int("certificate.student_id", int(actor.ID)), attribute.Int("certificate.course_id", int(courseID)))

	course, err := s.store.Catalog.FindCourse(ctx, courseID)
	if err != nil {
		err = notFound(err, ErrCourseNotFound)
		failSpan(span, err, "course_lookup_failed")
		return dto.CertificateData{}, err
	}

	completion, err := s.store.Progress.GetCourseCompletion(ctx, actor.ID, courseID)
	if err != nil {
		err = notFound(err, ErrNotEligible)
		failSpan(span, err, "not_eligible")
		return dto.CertificateData{}, err
	}

	student, err := s.store.Students.GetByID(ctx, actor.ID)
	if err != nil {
		err = notFound(err, ErrStudentNotFound)
		failSpan(span, err, "student_lookup_failed")
		return dto.CertificateData{}, err
	}

	data := dto.CertificateData{
		CertificateNumber: CertificateNumber(actor.ID, courseID),
		StudentID:         student.ID,
		StudentName:       student.DisplayName(),
		CourseID:          course.ID,
		CourseTitle:       course.Title,
		IssuedOn:          civilDate(s.now(), s.location).Format("2006-01-02"),
		CompletedAt:       completion.CompletedAt,
	}

	span.SetStatus(codes.Ok, "issued")
	s.logger.Info().Uint("student_id", actor.ID).Uint("course_id", courseID).Str("certificate_number", data.CertificateNumber).Msg("certificate issued")
	return data, nil
}

// CertificateNumber derives the stable certificate serial for a student and course.
func CertificateNumber(studentID, courseID uint) string {
	return uuid.NewSHA1(certificateNamespace, []byte(fmt.Sprintf("%d:%d", studentID, courseID))).String()
}
