package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// QuizHandler exposes quiz taking and authoring.
type QuizHandler struct {
	service service.QuizService
	logger  zerolog.Logger
}

// NewQuizHandler constructs the handler.
func NewQuizHandler(service service.QuizService, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		service: service,
		logger:  logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// Register attaches the student quiz endpoints. submitGuards run before the submission handler.
func (h *QuizHandler) Register(router fiber.Router, submitGuards ...fiber.Handler) {
	router.Get("/quizzes/:id", h.take)
	router.Post("/quizzes/:id/submit", append(submitGuards, h.submit)...)
	router.Get("/quizzes/:id/result", h.result)
}

// RegisterAdmin attaches the authoring endpoints.
func (h *QuizHandler) RegisterAdmin(router fiber.Router) {
	router.Get("/quizzes/template", h.template)
	router.Post("/lessons/:id/quiz", h.createQuiz)
	router.Post("/quizzes/:id/questions", h.addQuestion)
	router.Post("/quizzes/:id/questions/import", h.importQuestions)
}

func (h *QuizHandler) take(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.service.TakeQuiz(requestContext(c), actor, quizID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "quiz retrieved", attempt)
}

func (h *QuizHandler) submit(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := service.DecodeQuizSubmission(c.Body())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.ScoreSubmission(requestContext(c), actor, quizID, submission)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "quiz submitted", result)
}

func (h *QuizHandler) result(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.QuizResult(requestContext(c), actor, quizID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "quiz result retrieved", result)
}

func (h *QuizHandler) template(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="question_template.csv"`)
	return c.Send(h.service.QuestionTemplateCSV())
}

func (h *QuizHandler) createQuiz(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	lessonID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.QuizCreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, errInvalidBody.Error())
		}
	}

	quiz, err := h.service.CreateQuiz(requestContext(c), actor, lessonID, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "quiz ready", quiz)
}

func (h *QuizHandler) addQuestion(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.QuestionCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, errInvalidBody.Error())
	}

	question, err := h.service.AddQuestion(requestContext(c), actor, quizID, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question added", question)
}

func (h *QuizHandler) importQuestions(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	summary, err := h.service.ImportQuestionsCSV(requestContext(c), actor, quizID, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "questions imported", summary)
}
