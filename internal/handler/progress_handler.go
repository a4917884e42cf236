package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// ProgressHandler exposes lesson viewing and completion.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches the progress endpoints.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Get("/lessons/:id", h.viewLesson)
	router.Post("/lessons/:id/complete", h.completeLesson)
	router.Delete("/lessons/:id/complete", h.markIncomplete)
	router.Get("/courses/:id/progress", h.courseProgress)
	router.Post("/courses/:id/completion-check", h.completionCheck)
}

func (h *ProgressHandler) viewLesson(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	lessonID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.service.ViewLesson(requestContext(c), actor, lessonID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson retrieved", view)
}

func (h *ProgressHandler) completeLesson(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	lessonID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.CompleteLesson(requestContext(c), actor, lessonID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	message := "lesson completed"
	if result.Status == dto.CompletionStatusAlready {
		message = "lesson already completed"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *ProgressHandler) markIncomplete(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	lessonID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.MarkIncomplete(requestContext(c), actor, lessonID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson marked incomplete", fiber.Map{"lesson_id": lessonID})
}

func (h *ProgressHandler) courseProgress(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.CourseProgress(requestContext(c), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course progress retrieved", report)
}

func (h *ProgressHandler) completionCheck(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	completed, err := h.service.CourseCompletionCheck(requestContext(c), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course completion checked", fiber.Map{"course_id": courseID, "completed": completed})
}
