package dto

import (
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// QuizCreateRequest captures quiz authoring options. Zero values fall back to defaults.
type QuizCreateRequest struct {
	Title            string `json:"title" validate:"max=200"`
	PassPercentage   int    `json:"pass_percentage" validate:"omitempty,min=1,max=100"`
	TimeLimitMinutes int    `json:"time_limit_minutes" validate:"omitempty,min=1,max=600"`
}

// OptionCreateRequest is one answer option of a new question.
type OptionCreateRequest struct {
	Text      string `json:"text" validate:"required,max=300"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionCreateRequest captures a new multiple-choice question.
type QuestionCreateRequest struct {
	Text    string                `json:"text" validate:"required,max=2000"`
	Options []OptionCreateRequest `json:"options" validate:"required,min=2,dive"`
}

// QuizSubmissionRequest maps question ids to the selected option ids.
type QuizSubmissionRequest struct {
	Answers map[uint]uint `json:"answers"`
}

// OptionResponse exposes an option including its correctness, for authors.
type OptionResponse struct {
	ID        uint   `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionResponse exposes a question with its options, for authors.
type QuestionResponse struct {
	ID      uint             `json:"id"`
	QuizID  uint             `json:"quiz_id"`
	Text    string           `json:"text"`
	Options []OptionResponse `json:"options"`
}

// QuizResponse describes a quiz for authors.
type QuizResponse struct {
	ID               uint               `json:"id"`
	LessonID         uint               `json:"lesson_id"`
	Title            string             `json:"title"`
	PassPercentage   int                `json:"pass_percentage"`
	TimeLimitMinutes int                `json:"time_limit_minutes"`
	Questions        []QuestionResponse `json:"questions"`
	Created          bool               `json:"created"`
}

// AttemptOption is an option shown to a student; correctness is withheld.
type AttemptOption struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// AttemptQuestion is a question shown to a student.
type AttemptQuestion struct {
	ID      uint            `json:"id"`
	Text    string          `json:"text"`
	Options []AttemptOption `json:"options"`
}

// QuizAttemptResponse is the randomized question set handed to a student.
type QuizAttemptResponse struct {
	QuizID           uint              `json:"quiz_id"`
	LessonID         uint              `json:"lesson_id"`
	Title            string            `json:"title"`
	PassPercentage   int               `json:"pass_percentage"`
	TimeLimitMinutes int               `json:"time_limit_minutes"`
	Questions        []AttemptQuestion `json:"questions"`
}

// QuizResultResponse serializes the latest stored attempt.
type QuizResultResponse struct {
	QuizID         uint            `json:"quiz_id"`
	StudentID      uint            `json:"student_id"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"total_questions"`
	Percentage     int             `json:"percentage"`
	Passed         bool            `json:"passed"`
	Answers        map[string]uint `json:"answers"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// QuestionImportResponse reports the outcome of a CSV import.
type QuestionImportResponse struct {
	QuizID   uint `json:"quiz_id"`
	Imported int  `json:"imported"`
	Skipped  int  `json:"skipped"`
}

// NewQuestionResponse converts a question model.
func NewQuestionResponse(question models.Question) QuestionResponse {
	options := make([]OptionResponse, 0, len(question.Options))
	for _, option := range question.Options {
		options = append(options, OptionResponse{ID: option.ID, Text: option.Text, IsCorrect: option.IsCorrect})
	}
	return QuestionResponse{ID: question.ID, QuizID: question.QuizID, Text: question.Text, Options: options}
}

// NewQuizResponse converts a quiz model with preloaded questions.
func NewQuizResponse(quiz models.Quiz, created bool) QuizResponse {
	questions := make([]QuestionResponse, 0, len(quiz.Questions))
	for _, question := range quiz.Questions {
		questions = append(questions, NewQuestionResponse(question))
	}
	return QuizResponse{
		ID:               quiz.ID,
		LessonID:         quiz.LessonID,
		Title:            quiz.Title,
		PassPercentage:   quiz.PassPercentage,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Questions:        questions,
		Created:          created,
	}
}

// NewAttemptQuestion hides option correctness.
func NewAttemptQuestion(question models.Question) AttemptQuestion {
	options := make([]AttemptOption, 0, len(question.Options))
	for _, option := range question.Options {
		options = append(options, AttemptOption{ID: option.ID, Text: option.Text})
	}
	return AttemptQuestion{ID: question.ID, Text: question.Text, Options: options}
}

// NewQuizResultResponse converts a stored result.
func NewQuizResultResponse(result models.QuizResult) QuizResultResponse {
	return QuizResultResponse{
		QuizID:         result.QuizID,
		StudentID:      result.StudentID,
		Score:          result.Score,
		TotalQuestions: result.TotalQuestions,
		Percentage:     result.Percentage,
		Passed:         result.Passed,
		Answers:        uintMapFromJSON(result.Answers),
		CompletedAt:    result.CompletedAt,
	}
}

// AnswersToJSON snapshots a submission for storage.
func AnswersToJSON(answers map[uint]uint) datatypes.JSONMap {
	snapshot := datatypes.JSONMap{}
	for questionID, optionID := range answers {
		snapshot[strconv.FormatUint(uint64(questionID), 10)] = optionID
	}
	return snapshot
}

func uintMapFromJSON(data datatypes.JSONMap) map[string]uint {
	result := make(map[string]uint)
	for key, raw := range data {
		switch value := raw.(type) {
		case float64:
			if value >= 0 {
				result[key] = uint(value)
			}
		case uint:
			result[key] = value
		case int:
			if value >= 0 {
				result[key] = uint(value)
			}
		case string:
			if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
				result[key] = uint(parsed)
			}
		}
	}
	return result
}
