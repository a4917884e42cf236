package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/models"
	"github.com/noah-isme/brainboost-api/internal/observability"
	"github.com/noah-isme/brainboost-api/internal/repository"
)

const (
	maxQuestionFileSize = 1 << 20
	defaultQuestionCap  = 10
)

var questionTemplateHeader = []string{"Question", "Option1", "Option2", "CorrectOption"}

const submissionSchema = `{
  "type": "object",
  "required": ["answers"],
  "additionalProperties": false,
  "properties": {
    "answers": {
      "type": "object",
      "propertyNames": {"pattern": "^[1-9][0-9]*$"},
      "additionalProperties": {"type": "integer", "minimum": 0}
    }
  }
}`

var submissionValidator = jsonschema.MustCompileString("quiz_submission.json", submissionSchema)

// Score is the outcome of grading one submission.
type Score struct {
	Score      int
	Total      int
	Percentage int
	Passed     bool
}

// ScoreAnswers grades answers against questions. A question scores one point only when the
// selected option belongs to it and is correct; anything else scores zero.
func ScoreAnswers(questions []models.Question, answers map[uint]uint, passPercentage int) Score {
	result := Score{Total: len(questions)}
	for _, question := range questions {
		selected, ok := answers[question.ID]
		if !ok {
			continue
		}
		for _, option := range question.Options {
			if option.ID == selected && option.IsCorrect {
				result.Score++
				break
			}
		}
	}

	if result.Total > 0 {
		result.Percentage = result.Score * 100 / result.Total
		result.Passed = result.Percentage >= passPercentage
	}
	return result
}

// DecodeQuizSubmission validates the raw body against the submission schema before decoding it.
func DecodeQuizSubmission(raw []byte) (dto.QuizSubmissionRequest, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return dto.QuizSubmissionRequest{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if err := submissionValidator.Validate(document); err != nil {
		return dto.QuizSubmissionRequest{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	var req dto.QuizSubmissionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return dto.QuizSubmissionRequest{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if req.Answers == nil {
		req.Answers = map[uint]uint{}
	}
	return req, nil
}

// QuizService covers quiz authoring, attempts and scoring.
type QuizService interface {
	CreateQuiz(ctx context.Context, actor Actor, lessonID uint, req dto.QuizCreateRequest) (dto.QuizResponse, error)
	AddQuestion(ctx context.Context, actor Actor, quizID uint, req dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	ImportQuestionsCSV(ctx context.Context, actor Actor, quizID uint, file *multipart.FileHeader) (dto.QuestionImportResponse, error)
	QuestionTemplateCSV() []byte
	TakeQuiz(ctx context.Context, actor Actor, quizID uint) (dto.QuizAttemptResponse, error)
	ScoreSubmission(ctx context.Context, actor Actor, quizID uint, req dto.QuizSubmissionRequest) (dto.QuizResultResponse, error)
	QuizResult(ctx context.Context, actor Actor, quizID uint) (dto.QuizResultResponse, error)
}

type quizService struct {
	store       *repository.Store
	activity    ActivityRecorder
	dashboard   DashboardInvalidator
	validator   *validator.Validate
	policy      *bluemonday.Policy
	questionCap int
	logger      zerolog.Logger
	tracer      trace.Tracer
	shuffle     func(n int, swap func(i, j int))
	now         func() time.Time
}

// NewQuizService constructs the quiz engine. questionCap limits how many questions an attempt shows.
func NewQuizService(store *repository.Store, activity ActivityRecorder, dashboard DashboardInvalidator, validate *validator.Validate, questionCap int, logger zerolog.Logger) QuizService {
	if questionCap <= 0 {
		questionCap = defaultQuestionCap
	}
	return &quizService{
		store:       store,
		activity:    activity,
		dashboard:   dashboard,
		validator:   validate,
		policy:      bluemonday.StrictPolicy(),
		questionCap: questionCap,
		logger:      logger.With().Str("component", "quiz_service").Logger(),
		tracer:      otel.Tracer(tracerName + "/quiz"),
		shuffle:     rand.Shuffle,
		now:         time.Now,
	}
}

func (s *quizService) CreateQuiz(ctx context.Context, actor Actor, lessonID uint, req dto.QuizCreateRequest) (dto.QuizResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.QuizResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.QuizResponse{}, err
	}

	lesson, err := s.store.Catalog.GetLesson(ctx, lessonID)
	if err != nil {
		return dto.QuizResponse{}, notFound(err, ErrLessonNotFound)
	}

	quiz := models.Quiz{
		LessonID:         lesson.ID,
		Title:            plainText(s.policy, req.Title),
		PassPercentage:   req.PassPercentage,
		TimeLimitMinutes: req.TimeLimitMinutes,
	}
	if quiz.Title == "" {
		quiz.Title = "Quiz: " + lesson.Title
	}
	if quiz.PassPercentage == 0 {
		quiz.PassPercentage = models.DefaultPassPercentage
	}
	if quiz.TimeLimitMinutes == 0 {
		quiz.TimeLimitMinutes = 10
	}

	created, err := s.store.Quizzes.FirstOrCreate(ctx, &quiz)
	if err != nil {
		return dto.QuizResponse{}, fmt.Errorf("create quiz: %w", err)
	}

	if created {
		s.audit(ctx, actor, "quiz.created", quiz.ID, map[string]interface{}{"lesson_id": lesson.ID})
	}
	return dto.NewQuizResponse(quiz, created), nil
}

func (s *quizService) AddQuestion(ctx context.Context, actor Actor, quizID uint, req dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.QuestionResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.QuestionResponse{}, err
	}

	if _, err := s.store.Quizzes.GetByID(ctx, quizID); err != nil {
		return dto.QuestionResponse{}, notFound(err, ErrQuizNotFound)
	}

	question, err := s.buildQuestion(quizID, req)
	if err != nil {
		return dto.QuestionResponse{}, err
	}
	if err := s.store.Quizzes.CreateQuestion(ctx, &question); err != nil {
		return dto.QuestionResponse{}, fmt.Errorf("create question: %w", err)
	}

	s.audit(ctx, actor, "quiz.question_added", quizID, map[string]interface{}{"question_id": question.ID})
	return dto.NewQuestionResponse(question), nil
}

func (s *quizService) buildQuestion(quizID uint, req dto.QuestionCreateRequest) (models.Question, error) {
	question := models.Question{QuizID: quizID, Text: plainText(s.policy, req.Text)}
	if question.Text == "" || len(req.Options) < 2 {
		return models.Question{}, ErrInvalidQuestion
	}

	correct := 0
	for _, option := range req.Options {
		text := plainText(s.policy, option.Text)
		if text == "" {
			return models.Question{}, ErrInvalidQuestion
		}
		if option.IsCorrect {
			correct++
		}
		question.Options = append(question.Options, models.Option{Text: text, IsCorrect: option.IsCorrect})
	}
	if correct != 1 {
		return models.Question{}, ErrInvalidQuestion
	}
	return question, nil
}

// ImportQuestionsCSV adds two-option questions from rows of Question,Option1,Option2,CorrectOption.
// A header row and malformed rows are skipped; the import is all-or-nothing for the rows it accepts.
func (s *quizService) ImportQuestionsCSV(ctx context.Context, actor Actor, quizID uint, file *multipart.FileHeader) (dto.QuestionImportResponse, error) {
	if err := requireCapability(actor, CapabilityInstructor); err != nil {
		return dto.QuestionImportResponse{}, err
	}
	if file == nil {
		return dto.QuestionImportResponse{}, ErrInvalidQuestionFile
	}

	if _, err := s.store.Quizzes.GetByID(ctx, quizID); err != nil {
		return dto.QuestionImportResponse{}, notFound(err, ErrQuizNotFound)
	}

	content, err := readQuestionFile(file)
	if err != nil {
		return dto.QuestionImportResponse{}, err
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	response := dto.QuestionImportResponse{QuizID: quizID}
	var questions []models.Question
	for line := 0; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				response.Skipped++
				continue
			}
			return dto.QuestionImportResponse{}, fmt.Errorf("%w: %v", ErrInvalidQuestionFile, err)
		}
		if line == 0 && isTemplateHeader(record) {
			continue
		}

		question, ok := s.questionFromRecord(quizID, record)
		if !ok {
			response.Skipped++
			continue
		}
		questions = append(questions, question)
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		for i := range questions {
			if err := tx.Quizzes.CreateQuestion(ctx, &questions[i]); err != nil {
				return fmt.Errorf("import question: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dto.QuestionImportResponse{}, err
	}

	response.Imported = len(questions)
	s.audit(ctx, actor, "quiz.questions_imported", quizID, map[string]interface{}{
		"imported": response.Imported,
		"skipped":  response.Skipped,
	})
	s.logger.Info().Uint("quiz_id", quizID).Int("imported", response.Imported).Int("skipped", response.Skipped).Msg("questions imported")
	return response, nil
}

func (s *quizService) questionFromRecord(quizID uint, record []string) (models.Question, bool) {
	if len(record) < 4 {
		return models.Question{}, false
	}

	correct := strings.TrimSpace(record[3])
	if correct != "1" && correct != "2" {
		return models.Question{}, false
	}

	question, err := s.buildQuestion(quizID, dto.QuestionCreateRequest{
		Text: record[0],
		Options: []dto.OptionCreateRequest{
			{Text: record[1], IsCorrect: correct == "1"},
			{Text: record[2], IsCorrect: correct == "2"},
		},
	})
	if err != nil {
		return models.Question{}, false
	}
	return question, true
}

func isTemplateHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff")), questionTemplateHeader[0])
}

func readQuestionFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxQuestionFileSize {
		return nil, fmt.Errorf("%w: file too large", ErrInvalidQuestionFile)
	}

	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	content, err := io.ReadAll(io.LimitReader(handle, maxQuestionFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > maxQuestionFileSize {
		return nil, fmt.Errorf("%w: file too large", ErrInvalidQuestionFile)
	}

	detected := mimetype.Detect(content)
	if !detected.Is("text/csv") && !detected.Is("text/plain") {
		return nil, fmt.Errorf("%w: detected %s", ErrInvalidQuestionFile, detected.String())
	}
	return content, nil
}

func (s *quizService) QuestionTemplateCSV() []byte {
	buf := bytes.NewBuffer(nil)
	writer := csv.NewWriter(buf)
	_ = writer.Write(questionTemplateHeader)
	_ = writer.Write([]string{"What does HTTP stand for?", "HyperText Transfer Protocol", "High Transfer Text Protocol", "1"})
	writer.Flush()
	return buf.Bytes()
}

func (s *quizService) TakeQuiz(ctx context.Context, actor Actor, quizID uint) (dto.QuizAttemptResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.QuizAttemptResponse{}, err
	}

	quiz, err := s.studentQuiz(ctx, actor, quizID)
	if err != nil {
		return dto.QuizAttemptResponse{}, err
	}

	questions := append([]models.Question(nil), quiz.Questions...)
	s.shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if len(questions) > s.questionCap {
		questions = questions[:s.questionCap]
	}

	attempt := dto.QuizAttemptResponse{
		QuizID:           quiz.ID,
		LessonID:         quiz.LessonID,
		Title:            quiz.Title,
		PassPercentage:   quiz.PassPercentage,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Questions:        make([]dto.AttemptQuestion, 0, len(questions)),
	}
	for _, question := range questions {
		attempt.Questions = append(attempt.Questions, dto.NewAttemptQuestion(question))
	}
	return attempt, nil
}

// ScoreSubmission grades the submission against every question of the quiz and replaces the
// student's previous result. Quiz results never award points.
func (s *quizService) ScoreSubmission(ctx context.Context, actor Actor, quizID uint, req dto.QuizSubmissionRequest) (dto.QuizResultResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.QuizResultResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "quiz.score_submission")
	defer span.End()
	span.SetAttributes(attribute.Int("quiz.id", int(quizID)), attribute.Int("quiz.student_id", int(actor.ID)))

	quiz, err := s.studentQuiz(ctx, actor, quizID)
	if err != nil {
		failSpan(span, err, "quiz_lookup_failed")
		return dto.QuizResultResponse{}, err
	}

	answers := req.Answers
	if answers == nil {
		answers = map[uint]uint{}
	}
	score := ScoreAnswers(quiz.Questions, answers, quiz.PassPercentage)

	result := models.QuizResult{
		StudentID:      actor.ID,
		QuizID:         quiz.ID,
		Score:          score.Score,
		TotalQuestions: score.Total,
		Percentage:     score.Percentage,
		Passed:         score.Passed,
		Answers:        dto.AnswersToJSON(answers),
		CompletedAt:    s.now().UTC(),
	}
	if err := s.store.Quizzes.UpsertResult(ctx, &result); err != nil {
		failSpan(span, err, "result_upsert_failed")
		return dto.QuizResultResponse{}, fmt.Errorf("store quiz result: %w", err)
	}

	span.SetAttributes(attribute.Int("quiz.percentage", score.Percentage), attribute.Bool("quiz.passed", score.Passed))
	observability.QuizSubmissions().WithLabelValues(fmt.Sprintf("%t", score.Passed)).Inc()
	s.logger.Info().Uint("student_id", actor.ID).Uint("quiz_id", quiz.ID).Int("percentage", score.Percentage).Bool("passed", score.Passed).Msg("quiz scored")

	if s.dashboard != nil {
		s.dashboard.Invalidate(ctx, actor.ID)
	}
	return dto.NewQuizResultResponse(result), nil
}

func (s *quizService) QuizResult(ctx context.Context, actor Actor, quizID uint) (dto.QuizResultResponse, error) {
	if err := requireCapability(actor, CapabilityStudent); err != nil {
		return dto.QuizResultResponse{}, err
	}

	if _, err := s.store.Quizzes.GetByID(ctx, quizID); err != nil {
		return dto.QuizResultResponse{}, notFound(err, ErrQuizNotFound)
	}

	result, err := s.store.Quizzes.GetResult(ctx, actor.ID, quizID)
	if err != nil {
		return dto.QuizResultResponse{}, notFound(err, ErrQuizResultNotFound)
	}
	return dto.NewQuizResultResponse(result), nil
}

// studentQuiz loads a quiz the actor may attempt: its lesson and course must be visible and the
// student enrolled in the course.
func (s *quizService) studentQuiz(ctx context.Context, actor Actor, quizID uint) (models.Quiz, error) {
	quiz, err := s.store.Quizzes.GetByID(ctx, quizID)
	if err != nil {
		return models.Quiz{}, notFound(err, ErrQuizNotFound)
	}

	course, err := s.store.Catalog.FindCourse(ctx, quiz.Lesson.CourseID)
	if err != nil {
		return models.Quiz{}, notFound(err, ErrQuizNotFound)
	}
	if !actor.SeesInactive() && (!quiz.Lesson.IsActive || !course.IsActive) {
		return models.Quiz{}, ErrQuizNotFound
	}

	enrolled, err := s.store.Enrollments.Exists(ctx, actor.ID, course.ID)
	if err != nil {
		return models.Quiz{}, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return models.Quiz{}, ErrNotEnrolled
	}
	return quiz, nil
}

func (s *quizService) audit(ctx context.Context, actor Actor, action string, quizID uint, metadata map[string]interface{}) {
	id := quizID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "quiz",
		EntityID:   &id,
		Metadata:   metadata,
	})
}
