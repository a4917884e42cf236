package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

func TestScoreAnswers(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Options: []models.Option{{ID: 11, IsCorrect: true}, {ID: 12}}},
		{ID: 2, Options: []models.Option{{ID: 21}, {ID: 22, IsCorrect: true}}},
		{ID: 3, Options: []models.Option{{ID: 31, IsCorrect: true}, {ID: 32}}},
		{ID: 4, Options: []models.Option{{ID: 41, IsCorrect: true}, {ID: 42}}},
	}

	tests := []struct {
		name    string
		answers map[uint]uint
		want    Score
	}{
		{
			name:    "three of four correct",
			answers: map[uint]uint{1: 11, 2: 22, 3: 31, 4: 42},
			want:    Score{Score: 3, Total: 4, Percentage: 75, Passed: true},
		},
		{
			name:    "all correct",
			answers: map[uint]uint{1: 11, 2: 22, 3: 31, 4: 41},
			want:    Score{Score: 4, Total: 4, Percentage: 100, Passed: true},
		},
		{
			name:    "missing answers score zero",
			answers: map[uint]uint{1: 11},
			want:    Score{Score: 1, Total: 4, Percentage: 25, Passed: false},
		},
		{
			name:    "option from another question is wrong",
			answers: map[uint]uint{1: 22, 2: 11, 3: 31, 4: 41},
			want:    Score{Score: 2, Total: 4, Percentage: 50, Passed: false},
		},
		{
			name:    "unknown question ids are ignored",
			answers: map[uint]uint{99: 11, 1: 11, 2: 22},
			want:    Score{Score: 2, Total: 4, Percentage: 50, Passed: false},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ScoreAnswers(questions, tc.answers, 60))
		})
	}
}

func TestScoreAnswersWithoutQuestions(t *testing.T) {
	got := ScoreAnswers(nil, map[uint]uint{1: 1}, 0)
	require.Equal(t, Score{}, got)
}

func TestScoreAnswersFloorsPercentage(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Options: []models.Option{{ID: 1, IsCorrect: true}}},
		{ID: 2, Options: []models.Option{{ID: 2, IsCorrect: true}}},
		{ID: 3, Options: []models.Option{{ID: 3, IsCorrect: true}}},
	}
	got := ScoreAnswers(questions, map[uint]uint{1: 1, 2: 2}, 67)
	require.Equal(t, 66, got.Percentage)
	require.False(t, got.Passed)
}

func TestDecodeQuizSubmission(t *testing.T) {
	req, err := DecodeQuizSubmission([]byte(`{"answers":{"1":11,"2":22}}`))
	require.NoError(t, err)
	require.Equal(t, map[uint]uint{1: 11, 2: 22}, req.Answers)

	empty, err := DecodeQuizSubmission([]byte(`{"answers":{}}`))
	require.NoError(t, err)
	require.Empty(t, empty.Answers)

	for _, raw := range []string{
		`{}`,
		`{"answers":[1,2]}`,
		`{"answers":{"abc":1}}`,
		`{"answers":{"1":-4}}`,
		`{"answers":{"1":"11"}}`,
		`{"answers":{"1":1},"extra":true}`,
		`not json`,
	} {
		_, err := DecodeQuizSubmission([]byte(raw))
		require.ErrorIs(t, err, ErrInvalidSubmission, raw)
	}
}

type quizFixture struct {
	db      *gorm.DB
	store   *repository.Store
	quizzes QuizService
	student models.Student
	quiz    dto.QuizResponse
}

func newQuizFixture(t *testing.T) quizFixture {
	t.Helper()
	db := newTestDB(t)
	store := repository.NewStore(db)
	quizzes := NewQuizService(store, nil, nil, newValidator(), 10, testLogger())

	student := seedStudent(t, store, "Indah Permata")
	course := seedCourse(t, store, "Web Basics", true)
	lesson := seedLesson(t, store, course.ID, 1, models.ContentTypeVideo)
	seedEnrollment(t, store, student.ID, course.ID)

	quiz, err := quizzes.CreateQuiz(context.Background(), instructorActor(), lesson.ID, dto.QuizCreateRequest{Title: "HTTP"})
	require.NoError(t, err)
	require.True(t, quiz.Created)
	require.Equal(t, models.DefaultPassPercentage, quiz.PassPercentage)

	return quizFixture{db: db, store: store, quizzes: quizzes, student: student, quiz: quiz}
}

func (fx quizFixture) addQuestions(t *testing.T, count int) []dto.QuestionResponse {
	t.Helper()
	questions := make([]dto.QuestionResponse, 0, count)
	for i := 0; i < count; i++ {
		question, err := fx.quizzes.AddQuestion(context.Background(), instructorActor(), fx.quiz.ID, dto.QuestionCreateRequest{
			Text: "Question",
			Options: []dto.OptionCreateRequest{
				{Text: "right", IsCorrect: true},
				{Text: "wrong"},
			},
		})
		require.NoError(t, err)
		questions = append(questions, question)
	}
	return questions
}

func answerFor(question dto.QuestionResponse, correct bool) uint {
	for _, option := range question.Options {
		if option.IsCorrect == correct {
			return option.ID
		}
	}
	return 0
}

func TestScoreSubmissionUpsertsLatestAttempt(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()
	actor := studentActor(fx.student)
	questions := fx.addQuestions(t, 4)

	answers := map[uint]uint{}
	for i, question := range questions {
		answers[question.ID] = answerFor(question, i < 3)
	}

	first, err := fx.quizzes.ScoreSubmission(ctx, actor, fx.quiz.ID, dto.QuizSubmissionRequest{Answers: answers})
	require.NoError(t, err)
	require.Equal(t, 3, first.Score)
	require.Equal(t, 4, first.TotalQuestions)
	require.Equal(t, 75, first.Percentage)
	require.True(t, first.Passed)

	for _, question := range questions {
		answers[question.ID] = answerFor(question, true)
	}
	second, err := fx.quizzes.ScoreSubmission(ctx, actor, fx.quiz.ID, dto.QuizSubmissionRequest{Answers: answers})
	require.NoError(t, err)
	require.Equal(t, 4, second.Score)
	require.Equal(t, 100, second.Percentage)

	stored, err := fx.quizzes.QuizResult(ctx, actor, fx.quiz.ID)
	require.NoError(t, err)
	require.Equal(t, 4, stored.Score)
	require.Len(t, stored.Answers, 4)

	var attempts int64
	require.NoError(t, fx.db.Model(&models.QuizResult{}).
		Where("student_id = ? AND quiz_id = ?", fx.student.ID, fx.quiz.ID).
		Count(&attempts).Error)
	require.Equal(t, int64(1), attempts)

	_, err = fx.store.Rewards.GetPoints(ctx, fx.student.ID)
	require.Error(t, err, "quiz submissions must not award points")
}

func TestScoreSubmissionRequiresEnrollment(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()
	outsider := seedStudent(t, fx.store, "Joko Susilo")

	_, err := fx.quizzes.ScoreSubmission(ctx, studentActor(outsider), fx.quiz.ID, dto.QuizSubmissionRequest{})
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = fx.quizzes.ScoreSubmission(ctx, studentActor(fx.student), 4242, dto.QuizSubmissionRequest{})
	require.ErrorIs(t, err, ErrQuizNotFound)

	_, err = fx.quizzes.QuizResult(ctx, studentActor(fx.student), fx.quiz.ID)
	require.ErrorIs(t, err, ErrQuizResultNotFound)
}

func TestScoreSubmissionWithoutQuestionsScoresZero(t *testing.T) {
	fx := newQuizFixture(t)

	result, err := fx.quizzes.ScoreSubmission(context.Background(), studentActor(fx.student), fx.quiz.ID, dto.QuizSubmissionRequest{})
	require.NoError(t, err)
	require.Zero(t, result.TotalQuestions)
	require.Zero(t, result.Percentage)
	require.False(t, result.Passed)
}

func TestCreateQuizIsGetOrCreate(t *testing.T) {
	fx := newQuizFixture(t)

	again, err := fx.quizzes.CreateQuiz(context.Background(), instructorActor(), fx.quiz.LessonID, dto.QuizCreateRequest{Title: "Other", PassPercentage: 90})
	require.NoError(t, err)
	require.False(t, again.Created)
	require.Equal(t, fx.quiz.ID, again.ID)
	require.Equal(t, fx.quiz.PassPercentage, again.PassPercentage)

	_, err = fx.quizzes.CreateQuiz(context.Background(), studentActor(fx.student), fx.quiz.LessonID, dto.QuizCreateRequest{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAddQuestionRequiresSingleCorrectOption(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	_, err := fx.quizzes.AddQuestion(ctx, instructorActor(), fx.quiz.ID, dto.QuestionCreateRequest{
		Text:    "Two right answers",
		Options: []dto.OptionCreateRequest{{Text: "a", IsCorrect: true}, {Text: "b", IsCorrect: true}},
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)

	_, err = fx.quizzes.AddQuestion(ctx, instructorActor(), fx.quiz.ID, dto.QuestionCreateRequest{
		Text:    "No right answer",
		Options: []dto.OptionCreateRequest{{Text: "a"}, {Text: "b"}},
	})
	require.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestTakeQuizHidesCorrectnessAndCapsQuestions(t *testing.T) {
	fx := newQuizFixture(t)
	fx.addQuestions(t, 12)

	svc := fx.quizzes.(*quizService)
	shuffled := false
	svc.shuffle = func(n int, swap func(i, j int)) {
		shuffled = true
		for i := 0; i < n/2; i++ {
			swap(i, n-1-i)
		}
	}

	attempt, err := fx.quizzes.TakeQuiz(context.Background(), studentActor(fx.student), fx.quiz.ID)
	require.NoError(t, err)
	require.True(t, shuffled)
	require.Len(t, attempt.Questions, 10)
	for _, question := range attempt.Questions {
		require.Len(t, question.Options, 2)
	}
}

func TestImportQuestionsCSV(t *testing.T) {
	fx := newQuizFixture(t)
	ctx := context.Background()

	content := "Question,Option1,Option2,CorrectOption\n" +
		"What is 2+2?,4,5,1\n" +
		"Capital of Indonesia?,Surabaya,Jakarta,2\n" +
		"Broken row,only one\n" +
		"Bad answer,a,b,3\n"
	file := multipartFile(t, "questions.csv", []byte(content))

	result, err := fx.quizzes.ImportQuestionsCSV(ctx, instructorActor(), fx.quiz.ID, file)
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 2, result.Skipped)

	quiz, err := fx.store.Quizzes.GetByID(ctx, fx.quiz.ID)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	require.True(t, quiz.Questions[1].Options[1].IsCorrect)
}

func TestImportQuestionsRejectsBinary(t *testing.T) {
	fx := newQuizFixture(t)
	file := multipartFile(t, "questions.csv", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"))

	_, err := fx.quizzes.ImportQuestionsCSV(context.Background(), instructorActor(), fx.quiz.ID, file)
	require.ErrorIs(t, err, ErrInvalidQuestionFile)
}

func TestQuestionTemplateCSV(t *testing.T) {
	svc := NewQuizService(nil, nil, nil, newValidator(), 0, testLogger())
	template := string(svc.QuestionTemplateCSV())
	require.Contains(t, template, "Question,Option1,Option2,CorrectOption")
}

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}
