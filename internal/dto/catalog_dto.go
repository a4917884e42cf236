package dto

import (
	"time"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// CourseCreateRequest captures the payload for authoring a course.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=5000"`
	IsActive    *bool  `json:"is_active"`
}

// CourseUpdateRequest captures partial course updates.
type CourseUpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

// ActiveStateRequest toggles the visibility of a course or lesson.
type ActiveStateRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// LessonCreateRequest captures lesson metadata. It is accepted as JSON or as multipart
// form fields next to an optional "media" file.
type LessonCreateRequest struct {
	Title       string `json:"title" form:"title" validate:"required,min=3,max=200"`
	Body        string `json:"body" form:"body" validate:"max=20000"`
	ContentType string `json:"content_type" form:"content_type" validate:"required,oneof=PDF VIDEO pdf video"`
	PDFFile     string `json:"pdf_file" form:"pdf_file" validate:"max=512"`
	VideoFile   string `json:"video_file" form:"video_file" validate:"max=512"`
	Order       int    `json:"order" form:"order" validate:"required,min=1"`
	IsActive    *bool  `json:"is_active" form:"is_active"`
}

// CourseResponse is the list representation of a course.
type CourseResponse struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   uint      `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	LessonCount int64     `json:"lesson_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CourseDetailResponse includes the ordered lessons visible to the caller.
type CourseDetailResponse struct {
	CourseResponse
	Lessons []LessonResponse `json:"lessons"`
}

// LessonResponse serializes a lesson.
type LessonResponse struct {
	ID          uint      `json:"id"`
	CourseID    uint      `json:"course_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	ContentType string    `json:"content_type"`
	PDFFile     string    `json:"pdf_file,omitempty"`
	VideoFile   string    `json:"video_file,omitempty"`
	Order       int       `json:"order"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// EnrollmentResponse reports an enrollment and whether this request created it.
type EnrollmentResponse struct {
	ID          uint      `json:"id"`
	StudentID   uint      `json:"student_id"`
	CourseID    uint      `json:"course_id"`
	CourseTitle string    `json:"course_title,omitempty"`
	EnrolledAt  time.Time `json:"enrolled_at"`
	Created     bool      `json:"created"`
}

// NewCourseResponse converts a course model.
func NewCourseResponse(course models.Course, lessonCount int64) CourseResponse {
	return CourseResponse{
		ID:          course.ID,
		Title:       course.Title,
		Description: course.Description,
		CreatedBy:   course.CreatedBy,
		IsActive:    course.IsActive,
		LessonCount: lessonCount,
		CreatedAt:   course.CreatedAt,
	}
}

// NewCourseDetailResponse converts a course with preloaded lessons.
func NewCourseDetailResponse(course models.Course) CourseDetailResponse {
	lessons := make([]LessonResponse, 0, len(course.Lessons))
	for _, lesson := range course.Lessons {
		lessons = append(lessons, NewLessonResponse(lesson))
	}

	return CourseDetailResponse{
		CourseResponse: NewCourseResponse(course, int64(len(lessons))),
		Lessons:        lessons,
	}
}

// NewLessonResponse converts a lesson model.
func NewLessonResponse(lesson models.Lesson) LessonResponse {
	return LessonResponse{
		ID:          lesson.ID,
		CourseID:    lesson.CourseID,
		Title:       lesson.Title,
		Body:        lesson.Body,
		ContentType: lesson.ContentType,
		PDFFile:     lesson.PDFFile,
		VideoFile:   lesson.VideoFile,
		Order:       lesson.Order,
		IsActive:    lesson.IsActive,
		CreatedAt:   lesson.CreatedAt,
	}
}

// NewEnrollmentResponse converts an enrollment model.
func NewEnrollmentResponse(enrollment models.Enrollment, created bool) EnrollmentResponse {
	return EnrollmentResponse{
		ID:          enrollment.ID,
		StudentID:   enrollment.StudentID,
		CourseID:    enrollment.CourseID,
		CourseTitle: enrollment.Course.Title,
		EnrolledAt:  enrollment.EnrolledAt,
		Created:     created,
	}
}
