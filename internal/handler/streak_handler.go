package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// StreakHandler exposes login sessions and the daily streak.
type StreakHandler struct {
	service service.StreakService
	logger  zerolog.Logger
}

// NewStreakHandler constructs the handler.
func NewStreakHandler(service service.StreakService, logger zerolog.Logger) *StreakHandler {
	return &StreakHandler{
		service: service,
		logger:  logger.With().Str("component", "streak_handler").Logger(),
	}
}

// Register attaches the streak and session endpoints.
func (h *StreakHandler) Register(router fiber.Router) {
	router.Get("/me/streak", h.streak)
	router.Post("/sessions/start", h.start)
	router.Post("/sessions/end", h.end)
}

func (h *StreakHandler) streak(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	streak, err := h.service.Streak(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "streak retrieved", streak)
}

func (h *StreakHandler) start(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	session, err := h.service.StartSession(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "session started", session)
}

func (h *StreakHandler) end(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	session, err := h.service.EndSession(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "session ended", session)
}
