package models

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	// ContentTypePDF marks a lesson backed by a PDF document.
	ContentTypePDF = "PDF"
	// ContentTypeVideo marks a lesson backed by a video file.
	ContentTypeVideo = "VIDEO"
)

var (
	// ErrLessonPayloadMissing indicates the payload matching the content type is absent.
	ErrLessonPayloadMissing = errors.New("lesson payload for content type is missing")
	// ErrLessonPayloadConflict indicates the payload of the other content type is present.
	ErrLessonPayloadConflict = errors.New("lesson carries a payload for another content type")
	// ErrLessonPayloadExtension indicates the payload file has an unsupported extension.
	ErrLessonPayloadExtension = errors.New("lesson payload has an unsupported file extension")
	// ErrLessonContentType indicates an unknown content type.
	ErrLessonContentType = errors.New("unknown lesson content type")
	// ErrLessonOrder indicates a non-positive lesson order.
	ErrLessonOrder = errors.New("lesson order must be positive")
)

// Course groups an ordered set of lessons. Inactive courses are hidden from students.
type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   uint      `gorm:"index" json:"created_by"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Lessons     []Lesson  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"lessons,omitempty"`
}

// Lesson is a single unit of course content.
type Lesson struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"not null;uniqueIndex:idx_lessons_course_order" json:"course_id"`
	Title       string    `gorm:"size:200;not null" json:"title"`
	Body        string    `gorm:"type:text" json:"body"`
	ContentType string    `gorm:"size:10;not null" json:"content_type"`
	PDFFile     string    `gorm:"size:512" json:"pdf_file"`
	VideoFile   string    `gorm:"size:512" json:"video_file"`
	Order       int       `gorm:"column:lesson_order;not null;uniqueIndex:idx_lessons_course_order" json:"order"`
	IsActive    bool      `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeSave normalises the content type and payload paths.
func (l *Lesson) BeforeSave(tx *gorm.DB) error {
	l.ContentType = strings.ToUpper(strings.TrimSpace(l.ContentType))
	l.PDFFile = strings.TrimSpace(l.PDFFile)
	l.VideoFile = strings.TrimSpace(l.VideoFile)
	return nil
}

// Validate enforces that exactly the payload matching the content type is present.
func (l Lesson) Validate() error {
	if l.Order <= 0 {
		return ErrLessonOrder
	}

	pdf := strings.TrimSpace(l.PDFFile)
	video := strings.TrimSpace(l.VideoFile)

	switch strings.ToUpper(strings.TrimSpace(l.ContentType)) {
	case ContentTypePDF:
		if pdf == "" {
			return ErrLessonPayloadMissing
		}
		if video != "" {
			return ErrLessonPayloadConflict
		}
		if !hasExtension(pdf, ".pdf") {
			return ErrLessonPayloadExtension
		}
	case ContentTypeVideo:
		if video == "" {
			return ErrLessonPayloadMissing
		}
		if pdf != "" {
			return ErrLessonPayloadConflict
		}
		if !hasExtension(video, ".mp4", ".webm") {
			return ErrLessonPayloadExtension
		}
	default:
		return ErrLessonContentType
	}

	return nil
}

// CompletesOnView reports whether opening the lesson is enough to complete it.
func (l Lesson) CompletesOnView() bool {
	return strings.EqualFold(l.ContentType, ContentTypePDF)
}

func hasExtension(name string, allowed ...string) bool {
	ext := strings.ToLower(filepath.Ext(stripQuery(name)))
	for _, candidate := range allowed {
		if ext == candidate {
			return true
		}
	}
	return false
}

func stripQuery(name string) string {
	if idx := strings.IndexAny(name, "?#"); idx >= 0 {
		return name[:idx]
	}
	return name
}

// Enrollment is the unique (student, course) association gating lesson access.
type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	StudentID  uint      `gorm:"not null;uniqueIndex:idx_enrollments_student_course" json:"student_id"`
	CourseID   uint      `gorm:"not null;uniqueIndex:idx_enrollments_student_course;index" json:"course_id"`
	EnrolledAt time.Time `gorm:"not null" json:"enrolled_at"`
	Course     Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student    Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
