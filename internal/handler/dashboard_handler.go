package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// DashboardHandler exposes the student dashboard endpoint.
type DashboardHandler struct {
	service service.DashboardService
	logger  zerolog.Logger
}

// NewDashboardHandler creates a new handler instance.
func NewDashboardHandler(service service.DashboardService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		logger:  logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register attaches the dashboard endpoint.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/me/dashboard", h.getDashboard)
}

func (h *DashboardHandler) getDashboard(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	dashboard, cached, err := h.service.GetDashboard(requestContext(c), actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return utils.OK(c, dashboard, "dashboard retrieved", fiber.Map{"cache_hit": cached})
}
