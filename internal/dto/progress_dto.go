package dto

import (
	"time"

	"github.com/noah-isme/brainboost-api/internal/models"
)

const (
	// CompletionStatusNew reports that this request completed the lesson.
	CompletionStatusNew = "newly_completed"
	// CompletionStatusAlready reports that the lesson had been completed before.
	CompletionStatusAlready = "already_completed"
)

// LessonProgressResponse serializes a progress row.
type LessonProgressResponse struct {
	LessonID    uint       `json:"lesson_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// LessonCompletionResponse reports the outcome of a completion request.
type LessonCompletionResponse struct {
	LessonID        uint            `json:"lesson_id"`
	CourseID        uint            `json:"course_id"`
	Status          string          `json:"status"`
	CompletedAt     *time.Time      `json:"completed_at"`
	PointsAwarded   int             `json:"points_awarded"`
	TotalPoints     int             `json:"total_points"`
	Level           int             `json:"level"`
	UnlockedBadges  []BadgeResponse `json:"unlocked_badges"`
	CourseCompleted bool            `json:"course_completed"`
}

// LessonViewResponse is returned when a student opens a lesson.
type LessonViewResponse struct {
	Lesson     LessonResponse            `json:"lesson"`
	Progress   LessonProgressResponse    `json:"progress"`
	QuizID     *uint                     `json:"quiz_id,omitempty"`
	Completion *LessonCompletionResponse `json:"completion,omitempty"`
}

// LessonProgressItem describes one lesson inside a course progress report.
type LessonProgressItem struct {
	LessonID    uint       `json:"lesson_id"`
	Title       string     `json:"title"`
	Order       int        `json:"order"`
	ContentType string     `json:"content_type"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}

// CourseProgressResponse summarises a student's progress through a course.
type CourseProgressResponse struct {
	CourseID         uint                 `json:"course_id"`
	Enrolled         bool                 `json:"enrolled"`
	CompletedLessons int64                `json:"completed_lessons"`
	TotalLessons     int64                `json:"total_lessons"`
	Percentage       int                  `json:"percentage"`
	Completed        bool                 `json:"completed"`
	Lessons          []LessonProgressItem `json:"lessons"`
}

// NewLessonProgressResponse converts a progress model.
func NewLessonProgressResponse(progress models.LessonProgress) LessonProgressResponse {
	return LessonProgressResponse{
		LessonID:    progress.LessonID,
		Completed:   progress.Completed,
		CompletedAt: progress.CompletedAt,
	}
}

// Percentage returns floor(part*100/total), or 0 when total is zero.
func Percentage(part, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(part * 100 / total)
}
