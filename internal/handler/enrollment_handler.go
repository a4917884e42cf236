package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// EnrollmentHandler exposes the enrollment ledger.
type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  zerolog.Logger
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(service service.EnrollmentService, logger zerolog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger.With().Str("component", "enrollment_handler").Logger(),
	}
}

// Register attaches the enrollment endpoints.
func (h *EnrollmentHandler) Register(router fiber.Router) {
	router.Post("/courses/:id/enroll", h.enroll)
	router.Get("/me/enrollments", h.list)
}

func (h *EnrollmentHandler) enroll(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	enrollment, err := h.service.Enroll(requestContext(c), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if enrollment.Created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
	}
	return utils.SendSuccess(c, "already enrolled", enrollment)
}

func (h *EnrollmentHandler) list(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	enrollments, err := h.service.ListEnrollments(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}
