package handler

import (
	"mime/multipart"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// CatalogHandler exposes course browsing and instructor authoring endpoints.
type CatalogHandler struct {
	service   service.CatalogService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(service service.CatalogService, validator *validator.Validate, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "catalog_handler").Logger(),
	}
}

// Register attaches the student catalog endpoints.
func (h *CatalogHandler) Register(router fiber.Router) {
	router.Get("/courses", h.listCourses)
	router.Get("/courses/:id", h.getCourse)
}

// RegisterAdmin attaches the authoring endpoints.
func (h *CatalogHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/courses", h.createCourse)
	router.Patch("/courses/:id", h.updateCourse)
	router.Patch("/courses/:id/active", h.setCourseActive)
	router.Post("/courses/:id/lessons", h.createLesson)
	router.Patch("/lessons/:id/active", h.setLessonActive)
}

func (h *CatalogHandler) listCourses(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	courses, err := h.service.ListCourses(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "courses retrieved", courses)
}

func (h *CatalogHandler) getCourse(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	course, err := h.service.GetCourse(requestContext(c), actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course retrieved", course)
}

func (h *CatalogHandler) createCourse(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.CourseCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, errInvalidBody.Error())
	}

	course, err := h.service.CreateCourse(requestContext(c), actor, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CatalogHandler) updateCourse(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.CourseUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, errInvalidBody.Error())
	}

	course, err := h.service.UpdateCourse(requestContext(c), actor, id, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course updated", course)
}

func (h *CatalogHandler) setCourseActive(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	active, err := h.parseActiveState(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	course, err := h.service.SetCourseActive(requestContext(c), actor, id, active)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "course visibility updated", course)
}

func (h *CatalogHandler) createLesson(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.LessonCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, errInvalidBody.Error())
	}

	var media *multipart.FileHeader
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if file, err := c.FormFile("media"); err == nil {
			media = file
		}
	}

	lesson, err := h.service.CreateLesson(requestContext(c), actor, courseID, req, media)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "lesson created", lesson)
}

func (h *CatalogHandler) setLessonActive(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	active, err := h.parseActiveState(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	lesson, err := h.service.SetLessonActive(requestContext(c), actor, id, active)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lesson visibility updated", lesson)
}

func (h *CatalogHandler) parseActiveState(c *fiber.Ctx) (bool, error) {
	var req dto.ActiveStateRequest
	if err := c.BodyParser(&req); err != nil {
		return false, errInvalidBody
	}
	if err := h.validator.Struct(req); err != nil {
		return false, err
	}
	return *req.IsActive, nil
}
