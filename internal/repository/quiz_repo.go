package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/brainboost-api/internal/models"
)

// QuizRepository persists quizzes, questions and quiz results.
type QuizRepository interface {
	GetByID(ctx context.Context, id uint) (models.Quiz, error)
	GetByLesson(ctx context.Context, lessonID uint) (models.Quiz, error)
	FirstOrCreate(ctx context.Context, quiz *models.Quiz) (bool, error)
	CreateQuestion(ctx context.Context, question *models.Question) error
	UpsertResult(ctx context.Context, result *models.QuizResult) error
	GetResult(ctx context.Context, studentID, quizID uint) (models.QuizResult, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository constructs the quiz repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) withQuestions(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Lesson").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.id ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("options.id ASC")
		})
}

func (r *quizRepository) GetByID(ctx context.Context, id uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.withQuestions(ctx).First(&quiz, id).Error; err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (r *quizRepository) GetByLesson(ctx context.Context, lessonID uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.withQuestions(ctx).Where("lesson_id = ?", lessonID).First(&quiz).Error; err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

// FirstOrCreate keeps one quiz per lesson; the flag reports whether a new quiz was created.
func (r *quizRepository) FirstOrCreate(ctx context.Context, quiz *models.Quiz) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "lesson_id"}},
			DoNothing: true,
		}).
		Omit(clause.Associations).
		Create(quiz)
	if result.Error != nil {
		return false, result.Error
	}

	stored, err := r.GetByLesson(ctx, quiz.LessonID)
	if err != nil {
		return false, err
	}
	*quiz = stored

	return result.RowsAffected > 0, nil
}

func (r *quizRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

// UpsertResult stores the latest attempt, overwriting any previous attempt for the same student and quiz.
func (r *quizRepository) UpsertResult(ctx context.Context, result *models.QuizResult) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "quiz_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "total_questions", "percentage", "passed", "answers", "completed_at", "updated_at",
			}),
		}).
		Omit(clause.Associations).
		Create(result).Error
	if err != nil {
		return err
	}

	stored, err := r.GetResult(ctx, result.StudentID, result.QuizID)
	if err != nil {
		return err
	}
	*result = stored
	return nil
}

func (r *quizRepository) GetResult(ctx context.Context, studentID, quizID uint) (models.QuizResult, error) {
	var result models.QuizResult
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		First(&result).Error; err != nil {
		return models.QuizResult{}, err
	}
	return result, nil
}
