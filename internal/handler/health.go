package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sheetscribe/api/internal/service"
	"github.com/sheetscribe/api/internal/services/homr"
)

type HealthHandler struct {
	service    *service.JobService
	recognizer homr.Client
	maxMB      int
}

func NewHealthHandler(svc *service.JobService, recognizer homr.Client, maxMB int) *HealthHandler {
	return &HealthHandler{service: svc, recognizer: recognizer, maxMB: maxMB}
}

// Health handles GET /api/health
// @Summary  Liveness probe
// @Produce  json
// @Success  200 {object} map[string]interface{}
// @Router   /api/health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"homr_available": h.recognizer.Available(c.Context()),
		"max_upload_mb":  h.maxMB,
		"active_jobs":    h.service.ActiveJobs(),
	})
}
