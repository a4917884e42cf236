package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brainboost-api/internal/config"
	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/handler"
	"github.com/noah-isme/brainboost-api/internal/service"
)

type envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
	Details map[string]string      `json:"details"`
}

func authenticated(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		return c.Next()
	}
}

func do(t *testing.T, app *fiber.App, method, target string, body io.Reader, contentType string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

type stubProgressService struct {
	completion dto.LessonCompletionResponse
	err        error
	courseDone bool
	lastActor  service.Actor
	lastLesson uint
	lastCourse uint
}

func (s *stubProgressService) EnsureProgress(_ context.Context, _ service.Actor, lessonID uint) (dto.LessonProgressResponse, error) {
	return dto.LessonProgressResponse{LessonID: lessonID}, s.err
}

func (s *stubProgressService) CompleteLesson(_ context.Context, actor service.Actor, lessonID uint) (dto.LessonCompletionResponse, error) {
	s.lastActor, s.lastLesson = actor, lessonID
	if s.err != nil {
		return dto.LessonCompletionResponse{}, s.err
	}
	return s.completion, nil
}

func (s *stubProgressService) MarkIncomplete(_ context.Context, _ service.Actor, _ uint) error {
	return service.ErrProgressRegression
}

func (s *stubProgressService) ViewLesson(_ context.Context, _ service.Actor, lessonID uint) (dto.LessonViewResponse, error) {
	return dto.LessonViewResponse{Progress: dto.LessonProgressResponse{LessonID: lessonID}}, s.err
}

func (s *stubProgressService) CourseCompletionCheck(_ context.Context, actor service.Actor, courseID uint) (bool, error) {
	s.lastActor, s.lastCourse = actor, courseID
	return s.courseDone, s.err
}

func (s *stubProgressService) CourseProgress(_ context.Context, _ service.Actor, courseID uint) (dto.CourseProgressResponse, error) {
	return dto.CourseProgressResponse{CourseID: courseID}, s.err
}

func newProgressApp(svc service.ProgressService) *fiber.App {
	app := fiber.New()
	api := app.Group("/api/v1", authenticated(21, "Student"))
	handler.NewProgressHandler(svc, zerolog.Nop()).Register(api)
	return app
}

func TestCompleteLessonReturnsOutcome(t *testing.T) {
	svc := &stubProgressService{completion: dto.LessonCompletionResponse{
		LessonID:        5,
		Status:          dto.CompletionStatusNew,
		PointsAwarded:   10,
		CourseCompleted: true,
	}}
	app := newProgressApp(svc)

	status, payload := do(t, app, http.MethodPost, "/api/v1/lessons/5/complete", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)
	require.Equal(t, "lesson completed", payload.Message)

	var data dto.LessonCompletionResponse
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.Equal(t, 10, data.PointsAwarded)
	require.True(t, data.CourseCompleted)
	require.Equal(t, uint(21), svc.lastActor.ID)
	require.Equal(t, "student", svc.lastActor.Role)
	require.Equal(t, uint(5), svc.lastLesson)
}

func TestCourseCompletionCheckEndpoint(t *testing.T) {
	svc := &stubProgressService{courseDone: true}
	app := newProgressApp(svc)

	status, payload := do(t, app, http.MethodPost, "/api/v1/courses/8/completion-check", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)

	var data struct {
		CourseID  uint `json:"course_id"`
		Completed bool `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.Equal(t, uint(8), data.CourseID)
	require.True(t, data.Completed)
	require.Equal(t, uint(8), svc.lastCourse)
	require.Equal(t, uint(21), svc.lastActor.ID)

	notEnrolled := newProgressApp(&stubProgressService{err: service.ErrNotEnrolled})
	status, _ = do(t, notEnrolled, http.MethodPost, "/api/v1/courses/8/completion-check", nil, "")
	require.Equal(t, fiber.StatusForbidden, status)
}

func TestProgressErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not enrolled", service.ErrNotEnrolled, fiber.StatusForbidden},
		{"unknown lesson", service.ErrLessonNotFound, fiber.StatusNotFound},
		{"infrastructure", errors.New("connection reset"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newProgressApp(&stubProgressService{err: tc.err})
			status, payload := do(t, app, http.MethodPost, "/api/v1/lessons/7/complete", nil, "")
			require.Equal(t, tc.status, status)
			require.False(t, payload.Success)
			if tc.status == fiber.StatusInternalServerError {
				require.Equal(t, "internal server error", payload.Message)
			}
		})
	}
}

func TestProgressRejectsBadIdentifierAndRegression(t *testing.T) {
	app := newProgressApp(&stubProgressService{})

	status, _ := do(t, app, http.MethodPost, "/api/v1/lessons/abc/complete", nil, "")
	require.Equal(t, fiber.StatusBadRequest, status)

	status, payload := do(t, app, http.MethodDelete, "/api/v1/lessons/3/complete", nil, "")
	require.Equal(t, fiber.StatusConflict, status)
	require.Equal(t, service.ErrProgressRegression.Error(), payload.Message)
}

func TestProgressRequiresAuthenticatedUser(t *testing.T) {
	svc := &stubProgressService{}
	app := fiber.New()
	handler.NewProgressHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1"))

	status, payload := do(t, app, http.MethodGet, "/api/v1/lessons/3", nil, "")
	require.Equal(t, fiber.StatusUnauthorized, status)
	require.False(t, payload.Success)
	require.Zero(t, svc.lastLesson)
}

type stubQuizService struct {
	submitted *dto.QuizSubmissionRequest
	template  []byte
}

func (s *stubQuizService) CreateQuiz(_ context.Context, _ service.Actor, lessonID uint, req dto.QuizCreateRequest) (dto.QuizResponse, error) {
	return dto.QuizResponse{LessonID: lessonID, Title: req.Title}, nil
}

func (s *stubQuizService) AddQuestion(context.Context, service.Actor, uint, dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	return dto.QuestionResponse{}, service.ErrInvalidQuestion
}

func (s *stubQuizService) ImportQuestionsCSV(_ context.Context, _ service.Actor, quizID uint, file *multipart.FileHeader) (dto.QuestionImportResponse, error) {
	return dto.QuestionImportResponse{QuizID: quizID, Imported: int(file.Size)}, nil
}

func (s *stubQuizService) QuestionTemplateCSV() []byte {
	return s.template
}

func (s *stubQuizService) TakeQuiz(_ context.Context, _ service.Actor, quizID uint) (dto.QuizAttemptResponse, error) {
	return dto.QuizAttemptResponse{QuizID: quizID}, nil
}

func (s *stubQuizService) ScoreSubmission(_ context.Context, actor service.Actor, quizID uint, req dto.QuizSubmissionRequest) (dto.QuizResultResponse, error) {
	s.submitted = &req
	return dto.QuizResultResponse{QuizID: quizID, StudentID: actor.ID, Score: len(req.Answers)}, nil
}

func (s *stubQuizService) QuizResult(context.Context, service.Actor, uint) (dto.QuizResultResponse, error) {
	return dto.QuizResultResponse{}, service.ErrQuizResultNotFound
}

func TestQuizSubmitDecodesAnswers(t *testing.T) {
	svc := &stubQuizService{}
	app := fiber.New()
	handler.NewQuizHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1", authenticated(8, "student")))

	status, payload := do(t, app, http.MethodPost, "/api/v1/quizzes/4/submit",
		strings.NewReader(`{"answers": {"11": 3, "12": 7}}`), fiber.MIMEApplicationJSON)
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)
	require.NotNil(t, svc.submitted)
	require.Equal(t, map[uint]uint{11: 3, 12: 7}, svc.submitted.Answers)

	status, _ = do(t, app, http.MethodGet, "/api/v1/quizzes/4/result", nil, "")
	require.Equal(t, fiber.StatusNotFound, status)
}

func TestQuizSubmitRejectsMalformedBodies(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"answers": ["a", "b"]}`,
		`{"answers": {"first": 1}}`,
		`{"answers": {"1": -2}}`,
	}

	for _, body := range bodies {
		svc := &stubQuizService{}
		app := fiber.New()
		handler.NewQuizHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1", authenticated(8, "student")))

		status, payload := do(t, app, http.MethodPost, "/api/v1/quizzes/4/submit", strings.NewReader(body), fiber.MIMEApplicationJSON)
		require.Equal(t, fiber.StatusBadRequest, status, body)
		require.False(t, payload.Success)
		require.Nil(t, svc.submitted, body)
	}
}

func TestQuizSubmitGuardsRunFirst(t *testing.T) {
	svc := &stubQuizService{}
	app := fiber.New()
	blocked := func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "message": "too many requests"})
	}
	handler.NewQuizHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1", authenticated(8, "student")), blocked)

	status, _ := do(t, app, http.MethodPost, "/api/v1/quizzes/4/submit", strings.NewReader(`{"answers": {}}`), fiber.MIMEApplicationJSON)
	require.Equal(t, fiber.StatusTooManyRequests, status)
	require.Nil(t, svc.submitted)
}

func TestQuizAdminEndpoints(t *testing.T) {
	svc := &stubQuizService{template: []byte("Question,Option1,Option2,CorrectOption\n")}
	app := fiber.New()
	handler.NewQuizHandler(svc, zerolog.Nop()).RegisterAdmin(app.Group("/api/v1/admin", authenticated(1, "instructor")))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/quizzes/template", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	require.Equal(t, string(svc.template), string(body))

	status, _ := do(t, app, http.MethodPost, "/api/v1/admin/quizzes/2/questions",
		strings.NewReader(`{"text": "Q", "options": [{"text": "a", "is_correct": true}, {"text": "b", "is_correct": true}]}`), fiber.MIMEApplicationJSON)
	require.Equal(t, fiber.StatusBadRequest, status)

	var form strings.Builder
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "questions.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Question,Option1,Option2,CorrectOption\nGo?,Yes,No,1\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	status, payload := do(t, app, http.MethodPost, "/api/v1/admin/quizzes/2/questions/import", strings.NewReader(form.String()), writer.FormDataContentType())
	require.Equal(t, fiber.StatusOK, status)
	var summary dto.QuestionImportResponse
	require.NoError(t, json.Unmarshal(payload.Data, &summary))
	require.Equal(t, uint(2), summary.QuizID)
	require.Positive(t, summary.Imported)
}

type stubDashboardService struct {
	response dto.DashboardResponse
	cached   bool
	calls    int
	lastID   uint
}

func (s *stubDashboardService) GetDashboard(_ context.Context, actor service.Actor) (dto.DashboardResponse, bool, error) {
	s.calls++
	s.lastID = actor.ID
	return s.response, s.cached, nil
}

func (s *stubDashboardService) Invalidate(context.Context, uint) {}

func TestDashboardHandlerReportsCacheHit(t *testing.T) {
	svc := &stubDashboardService{response: dto.DashboardResponse{StudentID: 33, TotalPoints: 120, Level: 2}, cached: true}
	app := fiber.New()
	handler.NewDashboardHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1", authenticated(33, "student")))

	status, payload := do(t, app, http.MethodGet, "/api/v1/me/dashboard", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "dashboard retrieved", payload.Message)
	require.Equal(t, true, payload.Meta["cache_hit"])

	var data dto.DashboardResponse
	require.NoError(t, json.Unmarshal(payload.Data, &data))
	require.Equal(t, 120, data.TotalPoints)
	require.Equal(t, uint(33), svc.lastID)
	require.Equal(t, 1, svc.calls)
}

type stubEnrollmentService struct {
	created bool
}

func (s *stubEnrollmentService) Enroll(_ context.Context, actor service.Actor, courseID uint) (dto.EnrollmentResponse, error) {
	response := dto.EnrollmentResponse{ID: 1, StudentID: actor.ID, CourseID: courseID, Created: s.created}
	s.created = false
	return response, nil
}

func (s *stubEnrollmentService) IsEnrolled(context.Context, uint, uint) (bool, error) {
	return true, nil
}

func (s *stubEnrollmentService) ListEnrollments(context.Context, service.Actor) ([]dto.EnrollmentResponse, error) {
	return nil, service.ErrForbidden
}

func TestEnrollReturnsCreatedOnce(t *testing.T) {
	app := fiber.New()
	handler.NewEnrollmentHandler(&stubEnrollmentService{created: true}, zerolog.Nop()).Register(app.Group("/api/v1", authenticated(4, "student")))

	status, payload := do(t, app, http.MethodPost, "/api/v1/courses/9/enroll", nil, "")
	require.Equal(t, fiber.StatusCreated, status)
	require.Equal(t, "enrolled", payload.Message)

	status, payload = do(t, app, http.MethodPost, "/api/v1/courses/9/enroll", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, "already enrolled", payload.Message)

	status, _ = do(t, app, http.MethodGet, "/api/v1/me/enrollments", nil, "")
	require.Equal(t, fiber.StatusForbidden, status)
}

func TestHealthCheckReportsDependencies(t *testing.T) {
	cfg := config.Config{AppName: "BrainBoost API", AppEnv: "test"}

	app := fiber.New()
	app.Get("/ok", handler.HealthCheck(cfg, map[string]handler.HealthCheckFunc{
		"database": func(context.Context) error { return nil },
	}))
	app.Get("/degraded", handler.HealthCheck(cfg, map[string]handler.HealthCheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}))

	status, payload := do(t, app, http.MethodGet, "/ok", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	require.True(t, payload.Success)

	status, payload = do(t, app, http.MethodGet, "/degraded", nil, "")
	require.Equal(t, fiber.StatusServiceUnavailable, status)
	require.False(t, payload.Success)

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(payload.Data, &health))
	require.Equal(t, "degraded", health.Status)
	require.Equal(t, "ok", health.Checks["database"])
	require.Contains(t, health.Checks["redis"], "refused")
}
