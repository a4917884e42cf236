package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brainboost-api/internal/models"
)

func TestCertificateGate(t *testing.T) {
	fx := newProgressFixture(t)
	certificates := NewCertificateService(fx.store, time.UTC, testLogger())
	ctx := context.Background()

	student := seedStudent(t, fx.store, "Tari Handayani")
	course := seedCourse(t, fx.store, "Distributed Systems", true)
	first := seedLesson(t, fx.store, course.ID, 1, models.ContentTypeVideo)
	second := seedLesson(t, fx.store, course.ID, 2, models.ContentTypeVideo)
	seedEnrollment(t, fx.store, student.ID, course.ID)
	actor := studentActor(student)

	_, err := fx.progress.CompleteLesson(ctx, actor, first.ID)
	require.NoError(t, err)

	eligibility, err := certificates.IsCertificateEligible(ctx, actor, course.ID)
	require.NoError(t, err)
	require.False(t, eligibility.Eligible)

	_, err = certificates.IssueCertificate(ctx, actor, course.ID)
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = fx.progress.CompleteLesson(ctx, actor, second.ID)
	require.NoError(t, err)

	issued, err := certificates.IssueCertificate(ctx, actor, course.ID)
	require.NoError(t, err)
	require.Equal(t, "Tari Handayani", issued.StudentName)
	require.Equal(t, "Distributed Systems", issued.CourseTitle)
	require.Equal(t, CertificateNumber(student.ID, course.ID), issued.CertificateNumber)

	_, err = fx.store.Catalog.SetLessonActive(ctx, second.ID, false)
	require.NoError(t, err)

	eligibility, err = certificates.IsCertificateEligible(ctx, actor, course.ID)
	require.NoError(t, err)
	require.True(t, eligibility.Eligible)

	reissued, err := certificates.IssueCertificate(ctx, actor, course.ID)
	require.NoError(t, err)
	require.Equal(t, issued.CertificateNumber, reissued.CertificateNumber)
}

func TestCertificateUnknownCourse(t *testing.T) {
	store := newTestStore(t)
	certificates := NewCertificateService(store, time.UTC, testLogger())
	student := seedStudent(t, store, "Umar Faruq")

	_, err := certificates.IsCertificateEligible(context.Background(), studentActor(student), 404)
	require.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCertificateNumberIsDeterministic(t *testing.T) {
	require.Equal(t, CertificateNumber(1, 2), CertificateNumber(1, 2))
	require.NotEqual(t, CertificateNumber(1, 2), CertificateNumber(2, 1))
	require.Len(t, CertificateNumber(1, 2), 36)
}
