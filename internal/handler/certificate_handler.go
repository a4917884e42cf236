package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/brainboost-api/internal/service"
	"github.com/noah-isme/brainboost-api/internal/utils"
)

// CertificateHandler exposes the completion gate.
type CertificateHandler struct {
	service service.CertificateService
	logger  zerolog.Logger
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(service service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		service: service,
		logger:  logger.With().Str("component", "certificate_handler").Logger(),
	}
}

// Register attaches the certificate endpoints.
func (h *CertificateHandler) Register(router fiber.Router) {
	router.Get("/courses/:id/certificate/eligibility", h.eligibility)
	router.Get("/courses/:id/certificate", h.issue)
}

func (h *CertificateHandler) eligibility(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.IsCertificateEligible(requestContext(c), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "eligibility retrieved", result)
}

func (h *CertificateHandler) issue(c *fiber.Ctx) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return unauthorized(c)
	}
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	certificate, err := h.service.IssueCertificate(requestContext(c), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "certificate issued", certificate)
}
