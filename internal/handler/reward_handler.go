package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/dto"
	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// RewardHandler exposes points, badges and the leaderboard.
type RewardHandler struct {
	service service.RewardService
	logger  zerolog.Logger
}

// NewRewardHandler constructs the handler.
func NewRewardHandler(service service.RewardService, logger zerolog.Logger) *RewardHandler {
	return &RewardHandler{
		service: service,
		logger:  logger.With().Str("component", "reward_handler").Logger(),
	}
}

// Register attaches the student reward endpoints.
func (h *RewardHandler) Register(router fiber.Router) {
	router.Get("/me/rewards", h.summary)
	router.Get("/leaderboard", h.leaderboard)
	router.Get("/badges", h.listBadges)
}

// RegisterAdmin attaches badge authoring.
func (h *RewardHandler) RegisterAdmin(router fiber.Router) {
	router.Post("/badges", h.createBadge)
}

func (h *RewardHandler) summary(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	summary, err := h.service.Summary(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rewards retrieved", summary)
}

func (h *RewardHandler) leaderboard(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	board, err := h.service.Leaderboard(requestContext(c), limit)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.OK(c, board.Entries, "leaderboard retrieved", fiber.Map{"source": board.Source})
}

func (h *RewardHandler) listBadges(c *fiber.Ctx) error {
	badges, err := h.service.ListBadges(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "badges retrieved", badges)
}

func (h *RewardHandler) createBadge(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.BadgeCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, errInvalidBody.Error())
	}

	badge, err := h.service.CreateBadge(requestContext(c), actor, req)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "badge created", badge)
}
