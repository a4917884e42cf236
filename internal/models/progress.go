package models

import "time"

// LessonProgress tracks a student's completion of a lesson. Completion is set once and never reset.
type LessonProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	StudentID   uint       `gorm:"not null;uniqueIndex:idx_lesson_progress_student_lesson" json:"student_id"`
	LessonID    uint       `gorm:"not null;uniqueIndex:idx_lesson_progress_student_lesson;index" json:"lesson_id"`
	Completed   bool       `gorm:"not null;index" json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Lesson      Lesson     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student     Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// CourseCompletion is the materialised fact that a student finished every active lesson of a course.
type CourseCompletion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"not null;uniqueIndex:idx_course_completions_student_course" json:"student_id"`
	CourseID    uint      `gorm:"not null;uniqueIndex:idx_course_completions_student_course;index" json:"course_id"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	Course      Course    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student     Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName pins the table name used by raw joins.
func (LessonProgress) TableName() string {
	return "lesson_progress"
}
