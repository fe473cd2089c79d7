package response

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the wire shape for every API failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JobResponse wraps a job record for the wire.
type JobResponse struct {
	Job interface{} `json:"job"`
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{Error: message})
}

func ValidationError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, message)
}

func TooLarge(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusRequestEntityTooLarge, message)
}

func Unavailable(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, message)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Job(c *fiber.Ctx, job interface{}) error {
	return c.JSON(JobResponse{Job: job})
}

func CreatedJob(c *fiber.Ctx, job interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(JobResponse{Job: job})
}
