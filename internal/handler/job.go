package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/sheetscribe/api/internal/artifact"
	"github.com/sheetscribe/api/internal/model"
	"github.com/sheetscribe/api/internal/service"
	"github.com/sheetscribe/api/internal/worker"
	"github.com/sheetscribe/api/pkg/response"
)

type JobHandler struct {
	service *service.JobService
	maxMB   int
}

func NewJobHandler(svc *service.JobService, maxMB int) *JobHandler {
	return &JobHandler{service: svc, maxMB: maxMB}
}

// Create handles POST /api/jobs
// @Summary      Submit a transcription job
// @Description  Upload a score image or PDF; returns the job in queued state
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Score image or PDF (JPG, PNG, PDF; max 40MB)"
// @Success      201 {object} response.JobResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      413 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Router       /api/jobs [post]
func (h *JobHandler) Create(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open uploaded file")
	}
	defer f.Close()

	job, err := h.service.Submit(fileHeader.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedType):
			return response.ValidationError(c, err.Error())
		case errors.Is(err, artifact.ErrTooLarge):
			return response.TooLarge(c, fmt.Sprintf("File too large. Max upload size is %dMB.", h.maxMB))
		case errors.Is(err, worker.ErrQueueFull):
			return response.Unavailable(c, "Server is busy. Try again shortly.")
		case errors.Is(err, worker.ErrStopped):
			return response.Unavailable(c, "Server is shutting down.")
		default:
			return response.ServiceError(c, "Failed to store upload")
		}
	}

	return response.CreatedJob(c, job)
}

// Get handles GET /api/jobs/:id
// @Summary      Poll a job
// @Produce      json
// @Param        id path string true "Job ID"
// @Success      200 {object} response.JobResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{id} [get]
func (h *JobHandler) Get(c *fiber.Ctx) error {
	job, ok := h.service.Get(c.Params("id"))
	if !ok {
		return response.NotFound(c, "Job not found")
	}
	return response.Job(c, job)
}

// File handles GET /api/jobs/:id/files/:kind
// @Summary      Download a job artifact
// @Produce      octet-stream
// @Param        id   path string true "Job ID"
// @Param        kind path string true "Artifact kind" Enums(midi, musicxml, preview)
// @Success      200 {file} binary
// @Failure      404 {object} response.ErrorResponse
// @Router       /api/jobs/{id}/files/{kind} [get]
func (h *JobHandler) File(c *fiber.Ctx) error {
	kind, ok := model.ParseArtifactKind(c.Params("kind"))
	if !ok {
		return response.NotFound(c, "Artifact not available")
	}

	path, downloadName, err := h.service.ArtifactFile(c.Params("id"), kind)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return response.NotFound(c, "Artifact not available")
		}
		return response.NotFound(c, "Job not found")
	}

	if downloadName != "" {
		return c.Download(path, downloadName)
	}
	return c.SendFile(path)
}
