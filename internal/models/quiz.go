package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultPassPercentage applies when a quiz is created without an explicit threshold.
const DefaultPassPercentage = 60

// Quiz belongs to exactly one lesson and owns its questions.
type Quiz struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	LessonID         uint       `gorm:"not null;uniqueIndex" json:"lesson_id"`
	Title            string     `gorm:"size:200;not null" json:"title"`
	PassPercentage   int        `gorm:"not null;default:60" json:"pass_percentage"`
	TimeLimitMinutes int        `gorm:"not null;default:10" json:"time_limit_minutes"`
	CreatedAt        time.Time  `json:"created_at"`
	Lesson           Lesson     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Questions        []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// Question is a single multiple-choice prompt of a quiz.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QuizID    uint      `gorm:"not null;index" json:"quiz_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Options   []Option  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"options,omitempty"`
}

// Option is a selectable answer; exactly one option per question is expected to be correct.
type Option struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"question_id"`
	Text       string `gorm:"size:300;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null" json:"is_correct"`
}

// QuizResult stores the latest attempt of a student for a quiz.
type QuizResult struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	StudentID      uint              `gorm:"not null;uniqueIndex:idx_quiz_results_student_quiz" json:"student_id"`
	QuizID         uint              `gorm:"not null;uniqueIndex:idx_quiz_results_student_quiz;index" json:"quiz_id"`
	Score          int               `gorm:"not null" json:"score"`
	TotalQuestions int               `gorm:"not null" json:"total_questions"`
	Percentage     int               `gorm:"not null" json:"percentage"`
	Passed         bool              `gorm:"not null" json:"passed"`
	Answers        datatypes.JSONMap `gorm:"type:json" json:"answers"`
	CompletedAt    time.Time         `gorm:"not null" json:"completed_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Quiz           Quiz              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student        Student           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// TableName pins the table name used by raw joins.
func (Quiz) TableName() string {
	return "quizzes"
}
